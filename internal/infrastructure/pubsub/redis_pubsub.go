// Package pubsub publishes library processing-status changes over Redis
// so UI clients can subscribe instead of polling Coordination.Status.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sogos/paperlink/internal/coordination"
	"github.com/sogos/paperlink/internal/domain/service"
)

// StatusEvent mirrors coordination.ProcessingStatus for a single library,
// published whenever a job transition may have changed it.
type StatusEvent struct {
	LibraryID        uuid.UUID `json:"library_id"`
	PapersProcessing int       `json:"papers_processing"`
	LibraryLinking   bool      `json:"library_linking"`
}

// Publisher publishes a library's processing-status event.
type Publisher interface {
	PublishStatusEvent(ctx context.Context, event StatusEvent) error
}

// PublishStatus implements coordination.StatusPublisher, translating a
// ProcessingStatus into the wire StatusEvent shape.
func (p *RedisPubSub) PublishStatus(ctx context.Context, libraryID uuid.UUID, status coordination.ProcessingStatus) error {
	return p.PublishStatusEvent(ctx, StatusEvent{
		LibraryID:        libraryID,
		PapersProcessing: status.PapersProcessing,
		LibraryLinking:   status.LibraryLinking,
	})
}

// RedisPubSub implements Publisher over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger service.Logger
}

// Config holds Redis pub/sub configuration.
type Config struct {
	URL string
}

// New creates a RedisPubSub, pinging the connection eagerly.
func New(cfg Config, logger service.Logger) (*RedisPubSub, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis for pubsub: %w", err)
	}

	return &RedisPubSub{client: client, logger: logger}, nil
}

// NewFromClient wraps an existing *redis.Client.
func NewFromClient(client *redis.Client, logger service.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

func libraryChannel(libraryID uuid.UUID) string {
	return fmt.Sprintf("events:library:%s", libraryID.String())
}

// PublishStatusEvent publishes event to its library's channel.
func (p *RedisPubSub) PublishStatusEvent(ctx context.Context, event StatusEvent) error {
	channel := libraryChannel(event.LibraryID)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}

	p.logger.Debug("published status event",
		"channel", channel,
		"papers_processing", event.PapersProcessing,
		"library_linking", event.LibraryLinking,
	)
	return nil
}

// Subscribe subscribes to libraryID's status events, returning a channel
// of decoded events, a cleanup func, and an error.
func (p *RedisPubSub) Subscribe(ctx context.Context, libraryID uuid.UUID) (<-chan StatusEvent, func(), error) {
	channel := libraryChannel(libraryID)

	sub := p.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe to channel %s: %w", channel, err)
	}

	eventCh := make(chan StatusEvent, 10)

	go func() {
		defer close(eventCh)
		msgCh := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var event StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Error("failed to unmarshal status event", "error", err, "payload", msg.Payload)
					continue
				}
				select {
				case eventCh <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() { sub.Close() }
	p.logger.Debug("subscribed to library status events", "channel", channel)
	return eventCh, cleanup, nil
}

// Close closes the underlying Redis connection.
func (p *RedisPubSub) Close() error {
	return p.client.Close()
}

// NoOpPublisher discards every event; used when Redis isn't configured.
type NoOpPublisher struct{}

// PublishStatusEvent does nothing.
func (NoOpPublisher) PublishStatusEvent(ctx context.Context, event StatusEvent) error {
	return nil
}

// PublishStatus implements coordination.StatusPublisher.
func (NoOpPublisher) PublishStatus(ctx context.Context, libraryID uuid.UUID, status coordination.ProcessingStatus) error {
	return nil
}

var (
	_ coordination.StatusPublisher = (*RedisPubSub)(nil)
	_ coordination.StatusPublisher = NoOpPublisher{}
)
