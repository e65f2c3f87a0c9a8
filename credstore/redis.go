package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	socialconnect "github.com/mselvan/social-connect"
)

// RedisOption configures the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	defaultTTL time.Duration
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		prefix:     "socialconnect:cred",
		defaultTTL: 24 * time.Hour,
	}
}

// WithPrefix sets a key prefix for all store operations.
// Keys are stored as "{prefix}:{key}". An empty prefix stores keys as given.
// Default: "socialconnect:cred".
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithDefaultTTL sets how long credentials without a known expiry are kept.
// A negative value keeps them until deleted.
// Default: 24 hours.
func WithDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// Redis is a Store backed by Redis. Credentials are stored as JSON with a TTL
// derived from their expiry.
type Redis struct {
	client redis.UniversalClient
	opts   *redisOptions
	now    func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store. The caller owns the client's lifecycle.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := credstore.NewRedis(client, credstore.WithPrefix("myapp:cred"))
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Redis{client: client, opts: o, now: time.Now}
}

// Save stores c under key. A credential that has already expired is
// deleted instead.
func (r *Redis) Save(ctx context.Context, key string, c *socialconnect.Credential) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	ttl := r.opts.defaultTTL
	if exp := c.ExpiresAt(); !exp.IsZero() {
		ttl = exp.Sub(r.now())
		if ttl <= 0 {
			return r.Delete(ctx, key)
		}
	}

	// Redis interprets 0 as no expiration.
	return r.client.Set(ctx, r.prefixedKey(key), data, max(ttl, 0)).Err()
}

// Load returns the credential stored under key.
// Returns ErrNotFound if the key does not exist or has expired.
func (r *Redis) Load(ctx context.Context, key string) (*socialconnect.Credential, error) {
	data, err := r.client.Get(ctx, r.prefixedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var c socialconnect.Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}
	return &c, nil
}

// Delete removes the credential stored under key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefixedKey(key)).Err()
}

func (r *Redis) prefixedKey(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}
