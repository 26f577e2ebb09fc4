package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/okian/overcall/pkg/logger"
	"github.com/okian/overcall/pkg/metrics"
)

// RedisConfig selects the server and channel a RedisBroker uses.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisBroker publishes events on a Redis channel and relays everything
// received on that channel to local subscribers, so every replica's
// stream sees every replica's events.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *InMemoryBroker
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
	log     logger.Logger
}

// NewRedisBroker connects, subscribes to cfg.Channel and starts the relay.
func NewRedisBroker(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	pubsub := client.Subscribe(ctx, cfg.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Channel, err)
	}

	b := &RedisBroker{
		client:  client,
		channel: cfg.Channel,
		local:   NewInMemoryBroker(opts...),
		pubsub:  pubsub,
		log:     logger.Named("broker"),
	}
	b.wg.Add(1)
	go b.relay(pubsub.Channel())
	return b, nil
}

func (b *RedisBroker) relay(ch <-chan *redis.Message) {
	defer b.wg.Done()
	ctx := context.Background()
	for msg := range ch {
		e, err := DecodeEvent([]byte(msg.Payload))
		if err != nil {
			b.log.Warn(ctx, "dropping undecodable event", logger.Error(err))
			metrics.RecordErrorByComponent("broker", "decode")
			continue
		}
		if err := b.local.Publish(ctx, e); err != nil {
			return
		}
	}
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		metrics.RecordErrorByComponent("broker", "publish")
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe implements Broker.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return b.local.Subscribe(ctx)
}

// Subscribers implements Broker.
func (b *RedisBroker) Subscribers() int {
	return b.local.Subscribers()
}

// Close stops the relay and closes the client.
func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	_ = b.local.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// EncodeEvent renders an event as its wire JSON.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses wire JSON into an event.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return e, nil
}
