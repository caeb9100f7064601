package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelFeed carries change signals over Redis pub/sub so every process
// sharing the database sees them.
type channelFeed struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// Publish runs after the write has committed, so a failure only delays
// watchers until the next change and is logged rather than returned.
func (f *channelFeed) Publish(ctx context.Context) {
	if err := f.client.Publish(ctx, f.channel, "changed").Err(); err != nil {
		f.logger.Warn().Err(err).Str("channel", f.channel).Msg("Failed to announce change")
	}
}

// Subscribe implements storage.Subscriber.
func (f *channelFeed) Subscribe() (<-chan struct{}, func()) {
	pubsub := f.client.Subscribe(context.Background(), f.channel)

	// Wait for the subscription to be confirmed so no change published
	// after Subscribe returns is missed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_, _ = pubsub.Receive(ctx)
	cancel()

	signals := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(signals)
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			}
		}
	}()

	return signals, func() {
		close(done)
		_ = pubsub.Close()
	}
}
