package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

const listenerBuffer = 64

// channelSubscription is one Redis subscription fanned out to local listeners
type channelSubscription struct {
	pubsub    *redis.PubSub
	listeners map[chan *entities.ExplorerEvent]struct{}
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client *redisclient.Client

	mu       sync.RWMutex
	channels map[string]*channelSubscription

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		channels: make(map[string]*channelSubscription),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish publishes an event to every instance subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.ExplorerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", channel, err)
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Msg("published explorer event")
	return nil
}

// Subscribe returns a channel of events; it is closed when ctx ends or the
// subscription is torn down
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ExplorerEvent, error) {
	if b.ctx.Err() != nil {
		return nil, errors.New("event bus is closed")
	}

	listener := make(chan *entities.ExplorerEvent, listenerBuffer)

	b.mu.Lock()
	sub, ok := b.channels[channel]
	if !ok {
		sub = &channelSubscription{
			pubsub:    b.client.Client().Subscribe(b.ctx, channel),
			listeners: make(map[chan *entities.ExplorerEvent]struct{}),
		}
		b.channels[channel] = sub
		go b.fanOut(channel, sub)
	}
	sub.listeners[listener] = struct{}{}
	count := len(sub.listeners)
	b.mu.Unlock()

	observability.GetLogger().Info().
		Str("channel", channel).
		Int("listeners", count).
		Msg("subscribed to event channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeListener(channel, listener)
	}()

	return listener, nil
}

func (b *RedisEventBus) fanOut(channel string, sub *channelSubscription) {
	logger := observability.GetLogger().With().Str("channel", channel).Logger()
	messages := sub.pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.ExplorerEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Msg("dropping undecodable event")
				continue
			}

			b.mu.RLock()
			for listener := range sub.listeners {
				evt := event
				select {
				case listener <- &evt:
				default:
					logger.Warn().Str("event_id", event.ID).Msg("listener buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// removeListener detaches one listener and drops the Redis subscription
// once nobody is listening
func (b *RedisEventBus) removeListener(channel string, listener chan *entities.ExplorerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.channels[channel]
	if !ok {
		return
	}
	if _, ok := sub.listeners[listener]; !ok {
		return
	}

	delete(sub.listeners, listener)
	close(listener)

	if len(sub.listeners) == 0 {
		_ = sub.pubsub.Close()
		delete(b.channels, channel)
	}
}

func (b *RedisEventBus) closeChannel(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.channels[channel]
	if !ok {
		return nil
	}
	for listener := range sub.listeners {
		close(listener)
	}
	delete(b.channels, channel)

	if err := sub.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	return nil
}

// Unsubscribe closes every local listener of channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	if err := b.closeChannel(channel); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info().Str("channel", channel).Msg("unsubscribed from event channel")
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.RLock()
	channels := make([]string, 0, len(b.channels))
	for channel := range b.channels {
		channels = append(channels, channel)
	}
	b.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := b.closeChannel(channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
