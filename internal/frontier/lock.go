package frontier

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueContention is returned when the reserve serialization primitive
// could not be acquired within the retry budget. Callers treat it as an
// empty reservation.
var ErrQueueContention = errors.New("frontier: reserve lock contention")

// RedisLock serializes Reserve across master replicas through a volatile
// Redis key. The TTL guards against a crashed holder wedging the queue.
type RedisLock struct {
	Client        *redis.Client
	Key           string
	TTL           time.Duration
	Retries       int
	RetryInterval time.Duration
}

// Acquire takes the lock, retrying up to the configured budget. The
// returned release function is safe to call once.
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	retries := l.Retries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		ok, err := l.Client.SetNX(ctx, l.Key, "locked", l.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = l.Client.Del(context.Background(), l.Key).Err() }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.RetryInterval):
		}
	}
	return nil, ErrQueueContention
}
