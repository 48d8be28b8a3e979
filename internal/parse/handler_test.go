package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountReferences(t *testing.T) {
	text := "Intro text here. References [1] Smith, J. (2019) A Paper. [2] Doe, A. (2020) Another Paper."
	assert.Equal(t, 2, countReferences(text))
}

func TestCountReferencesNoHeading(t *testing.T) {
	text := "Some text with [1] a bracket but no heading."
	assert.Equal(t, 0, countReferences(text))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("a   b\n\tc"))
}

func TestFirstNonEmptyLine(t *testing.T) {
	short := "a short title"
	assert.Equal(t, short, firstNonEmptyLine(short))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, firstNonEmptyLine(string(long)), 200)
}
