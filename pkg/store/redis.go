package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/events"
	"github.com/clientauth/sessionkit/pkg/logging"
)

// Redis persists the session content under a key and broadcasts every write
// on a pub/sub channel. Each store instance carries a random origin id;
// broadcasts tagged with the instance's own origin are discarded, so
// subscribers only see changes made by other processes.
type Redis struct {
	client  *redis.Client
	key     string
	channel string
	origin  string
	logger  logging.Logger
	updates events.Signal[authenticator.Data]

	mu     sync.Mutex
	closed bool

	pubsub *redis.PubSub
	done   chan struct{}
}

// redisEnvelope is the broadcast wire format.
type redisEnvelope struct {
	Origin string             `json:"origin"`
	Data   authenticator.Data `json:"data"`
}

// NewRedis connects to Redis and starts the update subscriber.
func NewRedis(cfg RedisConfig, logger logging.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	key := cfg.Key
	if key == "" {
		key = "sessionkit:session"
	}
	channel := cfg.Channel
	if channel == "" {
		channel = key + ":updates"
	}

	origin := make([]byte, 16)
	if _, err := rand.Read(origin); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: failed to generate origin id: %w", err)
	}

	r := &Redis{
		client:  client,
		key:     key,
		channel: channel,
		origin:  hex.EncodeToString(origin),
		logger:  logger.WithModule("store/redis"),
		done:    make(chan struct{}),
	}

	r.pubsub = client.Subscribe(context.Background(), channel)
	// Force the subscription before the first Persist can publish.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		r.pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("store: failed to subscribe to %s: %w", channel, err)
	}
	go r.receive()

	return r, nil
}

// Restore reads the persisted content. A missing key yields an empty
// snapshot.
func (r *Redis) Restore(ctx context.Context) (authenticator.Data, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.mu.Unlock()

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return authenticator.Data{}, nil
		}
		return nil, fmt.Errorf("store: redis get failed: %w", err)
	}

	var data authenticator.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("store: failed to parse persisted session data: %w", err)
	}
	return data, nil
}

// Persist writes the content and broadcasts it tagged with this instance's
// origin id.
func (r *Redis) Persist(ctx context.Context, data authenticator.Data) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.mu.Unlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: failed to marshal session data: %w", err)
	}
	envelope, err := json.Marshal(redisEnvelope{Origin: r.origin, Data: data})
	if err != nil {
		return fmt.Errorf("store: failed to marshal update envelope: %w", err)
	}

	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, envelope).Err(); err != nil {
		return fmt.Errorf("store: redis publish failed: %w", err)
	}
	return nil
}

// OnUpdate subscribes to changes persisted by other processes.
func (r *Redis) OnUpdate(fn func(authenticator.Data)) func() {
	return r.updates.Subscribe(fn)
}

// Close stops the subscriber and closes the connection.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()

	err := r.pubsub.Close()
	<-r.done
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *Redis) receive() {
	defer close(r.done)

	for msg := range r.pubsub.Channel() {
		var envelope redisEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			r.logger.Warn("Discarding malformed session update", "error", err)
			continue
		}
		if envelope.Origin == r.origin {
			continue
		}

		r.logger.Debug("Session changed in another process")
		data := envelope.Data
		if data == nil {
			data = authenticator.Data{}
		}
		r.updates.Publish(data)
	}
}
