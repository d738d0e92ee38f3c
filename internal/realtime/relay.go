package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/telemetry"
)

// RelayChannel is the redis pub/sub channel shared by every server process.
const RelayChannel = "tableside:events"

const relayPublishTimeout = time.Second

// RedisRelay broadcasts events to every server process through redis pub/sub.
// Events published here reach the local hub through the subscription, so
// processes never deliver their own events twice.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger

	wg        sync.WaitGroup
	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisRelay creates a relay feeding hub. Call Run to start receiving.
func NewRedisRelay(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		logger: logger.With().Str("component", "relay").Logger(),
		ready:  make(chan struct{}),
	}
}

// Publish sends evt to redis without blocking the caller. If redis is
// unavailable the event is still delivered to this process's subscribers.
func (r *RedisRelay) Publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(evt.Type)).Msg("failed to encode event")
		return
	}

	r.wg.Go(func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayPublishTimeout)
		defer cancel()

		if err := r.client.Publish(pubCtx, RelayChannel, payload).Err(); err != nil {
			telemetry.GetMetrics().RelayErrorsTotal.Add(pubCtx, 1)
			r.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("relay publish failed, delivering locally")
			r.hub.Publish(pubCtx, evt)
		}
	})
}

// Ready is closed once the first subscription is established.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run receives relayed events until ctx is cancelled, resubscribing with
// backoff when the connection drops.
func (r *RedisRelay) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	for {
		err := r.subscribe(ctx, bo)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		telemetry.GetMetrics().RelayErrorsTotal.Add(ctx, 1)
		r.logger.Warn().Err(err).Dur("retry_in", wait).Msg("relay subscription lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *RedisRelay) subscribe(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	ps := r.client.Subscribe(ctx, RelayChannel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	bo.Reset()
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info().Str("channel", RelayChannel).Msg("relay subscribed")

	// unblock ReceiveMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			r.logger.Warn().Err(err).Msg("dropping malformed relay message")
			continue
		}
		r.hub.Publish(ctx, evt)
	}
}

// Wait blocks until in flight publishes finish.
func (r *RedisRelay) Wait() {
	r.wg.Wait()
}
