package main

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"tuesearch/internal/config"
	"tuesearch/internal/frontier"
)

// newRedisLocker builds the cross-replica reserve lock from the redis
// URL. Only needed when more than one master shares the frontier; a
// single master serializes through the database instead.
func newRedisLocker(cfg *config.Config) frontier.Locker {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}

	ttl := time.Duration(cfg.Frontier.LockTTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	interval := time.Duration(cfg.Frontier.LockRetryIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &frontier.RedisLock{
		Client:        redis.NewClient(opt),
		Key:           "tuesearch:frontier:lock",
		TTL:           ttl,
		Retries:       cfg.Frontier.LockRetries,
		RetryInterval: interval,
	}
}
