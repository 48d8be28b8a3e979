package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithLevelFallsBackOnBadLevel(t *testing.T) {
	l := NewWithLevel("not-a-level")
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.Info("hello", "key", "value")
	})
}

func TestWithReturnsNewLogger(t *testing.T) {
	l := New()
	child := l.With("job_id", "abc")
	require.NotNil(t, child)
	assert.NotPanics(t, func() {
		child.Debug("scoped message")
	})
}
