package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisClient is the narrow slice of *redis.Client this bus depends on.
// Publish/PSubscribe live on the concrete client rather than on
// redis.Cmdable (pubsub uses its own dedicated connection), so this
// package declares its own seam rather than depending on Cmdable.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
	Close() error
}

// Redis backs the Bus interface with Redis PUBLISH/PSUBSCRIBE,
// demonstrating that MQTT (or here, Redis) is one possible bus
// transport: nothing upstream of the Bus interface changes when the
// transport does.
type Redis struct {
	client redisClient
	prefix string
	retain *RetainedCache

	mu   sync.Mutex
	subs map[string]*redisSubscription

	closed bool
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// RedisConfig configures a Redis-backed bus.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // optional key-space prefix for published channels
	Options  *redis.Options
}

// NewRedis dials Redis and returns a Bus over it. retained may be nil to
// disable the retained-value cache (Redis PUBLISH itself has no concept
// of retention).
func NewRedis(cfg RedisConfig, retained *RetainedCache) (*Redis, error) {
	var client *redis.Client
	if cfg.Options != nil {
		client = redis.NewClient(cfg.Options)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("bus: failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: cfg.Prefix,
		retain: retained,
		subs:   make(map[string]*redisSubscription),
	}, nil
}

// NewRedisFromClient wraps an existing client (e.g. a fake used in
// tests) as a Bus, bypassing dialing and the Ping health check.
func NewRedisFromClient(client redisClient, prefix string, retained *RetainedCache) *Redis {
	return &Redis{client: client, prefix: prefix, retain: retained, subs: make(map[string]*redisSubscription)}
}

func (r *Redis) channel(topicName string) string {
	return r.prefix + topicName
}

// topicOfChannel strips this bus's prefix back off a Redis channel name,
// the inverse of channel.
func (r *Redis) topicOfChannel(channelName string) string {
	return strings.TrimPrefix(channelName, r.prefix)
}

func (r *Redis) Publish(topicName string, payload []byte, retain bool) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if retain && r.retain != nil {
		r.retain.Set(topicName, payload)
	}

	return r.client.Publish(context.Background(), r.channel(topicName), payload).Err()
}

// Subscribe translates an MQTT-style filter into a Redis pattern
// ('+' -> '*' within one segment is not expressible in glob, so '+' maps
// to '*' too — callers relying on strict single-level '+' semantics for
// Redis-backed buses should prefer concrete topics or '#').
func (r *Redis) Subscribe(filter string, handler Handler) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.mu.Unlock()

	pattern := r.channel(toRedisPattern(filter))
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.PSubscribe(ctx, pattern)

	id := pattern + "#" + fmt.Sprintf("%p", pubsub)
	sub := &redisSubscription{pubsub: pubsub, cancel: cancel}

	r.mu.Lock()
	r.subs[id] = sub
	r.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			handler(r.topicOfChannel(msg.Channel), []byte(msg.Payload))
		}
	}()

	if r.retain != nil {
		for _, rv := range r.retain.Matching(filter) {
			handler(rv.Topic, rv.Payload)
		}
	}

	return id, nil
}

func (r *Redis) Unsubscribe(id string) error {
	r.mu.Lock()
	sub, ok := r.subs[id]
	delete(r.subs, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	sub.cancel()
	return sub.pubsub.Close()
}

func (r *Redis) Disconnect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*redisSubscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[string]*redisSubscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		_ = sub.pubsub.Close()
	}

	return r.client.Close()
}

// toRedisPattern maps a FlightVars-style topic filter onto a Redis glob
// pattern: '+' and '#' both become '*', since Redis PSUBSCRIBE has no
// native concept of MQTT's level-scoped wildcards.
func toRedisPattern(filter string) string {
	var b strings.Builder
	for _, level := range strings.Split(filter, "/") {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		switch level {
		case "+", "#":
			b.WriteByte('*')
		default:
			b.WriteString(level)
		}
	}
	return b.String()
}
