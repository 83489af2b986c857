package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	OrderLockKeyPrefix = "mensajero:billing:order-lock:"

	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out waiting for order lock")

// Only the holder that set the token may release the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrderLocker serialises webhook handling of one PayPal order across
// application instances. The TTL bounds how long a crashed holder can
// block others.
type OrderLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewOrderLocker(client *redis.Client, ttl time.Duration) *OrderLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &OrderLocker{client: client, ttl: ttl, retry: defaultLockRetry}
}

// Lock blocks until the lock for orderID is held or ctx is done.
func (l *OrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	key := OrderLockKeyPrefix + orderID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
					log.Warnf("[Billing] Releasing lock for order %s failed, it expires in %s: %v", orderID, l.ttl, err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
