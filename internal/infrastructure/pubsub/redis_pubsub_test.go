package pubsub

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/paperlink/internal/coordination"
)

func TestNoOpPublisherNeverFails(t *testing.T) {
	var p NoOpPublisher
	err := p.PublishStatus(context.Background(), uuid.New(), coordination.ProcessingStatus{PapersProcessing: 3, LibraryLinking: true})
	require.NoError(t, err)
}

func TestLibraryChannelNaming(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "events:library:"+id.String(), libraryChannel(id))
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New(Config{URL: "not-a-url"}, nil)
	require.Error(t, err)
}
