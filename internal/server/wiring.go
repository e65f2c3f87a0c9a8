package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	socialconnect "github.com/mselvan/social-connect"
	"github.com/mselvan/social-connect/credstore"
)

var errNoProviders = errors.New("server: no provider configured; set GOOGLE_CONSUMER_KEY or LINKEDIN_CONSUMER_KEY")

// Providers returns a factory for every provider with a consumer key in cfg.
// opts are applied to every provider created.
func Providers(cfg Config, opts ...socialconnect.Option) (map[string]ProviderFactory, error) {
	factories := make(map[string]ProviderFactory)
	if cfg.Google.ConsumerKey != "" {
		if err := cfg.Google.Validate(); err != nil {
			return nil, err
		}
		google := cfg.Google
		factories[idOr(google.ID, "google")] = func() (socialconnect.Provider, error) {
			return socialconnect.NewGoogle(google, opts...)
		}
	}
	if cfg.LinkedIn.ConsumerKey != "" {
		if err := cfg.LinkedIn.Validate(); err != nil {
			return nil, err
		}
		linkedIn := cfg.LinkedIn
		factories[idOr(linkedIn.ID, "linkedin")] = func() (socialconnect.Provider, error) {
			return socialconnect.NewLinkedIn(linkedIn, opts...)
		}
	}
	if len(factories) == 0 {
		return nil, errNoProviders
	}
	return factories, nil
}

func idOr(id, fallback string) string {
	if id == "" {
		return fallback
	}
	return id
}

// OpenStore connects the Redis store when a URL is configured and falls back
// to memory otherwise. The returned close function releases the connection.
func OpenStore(ctx context.Context, cfg RedisConfig) (credstore.Store, func() error, error) {
	if cfg.URL == "" {
		return credstore.NewMemory(), func() error { return nil }, nil
	}
	if !strings.HasPrefix(cfg.URL, "redis://") && !strings.HasPrefix(cfg.URL, "rediss://") {
		return nil, nil, fmt.Errorf("redis url must use redis:// or rediss://")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return credstore.NewRedis(client, credstore.WithPrefix(cfg.Prefix)), client.Close, nil
}
