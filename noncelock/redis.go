package noncelock

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL  = 30 * time.Second
	defaultPoll = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so an
// expired holder cannot release a lock someone else has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease by ARGV[2] milliseconds while the key still
// holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// lockClient is the part of *redis.Client the lock uses.
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis is a Locker shared by every gateway instance using the same signing
// key. The lease is renewed every ttl/3 while held, so the TTL only bounds how
// long a crashed holder can block others.
type Redis struct {
	client lockClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return newRedis(client, prefix, ttl)
}

func newRedis(client lockClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = "supplygate"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, poll: defaultPoll}
}

func (r *Redis) key(account common.Address) string {
	return fmt.Sprintf("%s:nonce:%s", r.prefix, strings.ToLower(account.Hex()))
}

func (r *Redis) Lock(ctx context.Context, account common.Address) (context.Context, func(), error) {
	key := r.key(account)
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("nonce lock %s: %w", account.Hex(), err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("nonce lock %s: %w", account.Hex(), ctx.Err())
		}
	}

	held, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go r.renew(held, cancel, done, key, token)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(done)
			cancel(nil)
			// release even if the request context is already done
			rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer rcancel()
			if err := releaseScript.Run(rctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				log.Printf("noncelock: release %s: %v", key, err)
			}
		})
	}, nil
}

// renew extends the lease until done is closed or held ends. A failed or
// refused extension cancels held with ErrLockLost, since another instance may
// acquire the key once it expires.
func (r *Redis) renew(held context.Context, lost context.CancelCauseFunc, done <-chan struct{}, key, token string) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}
		n, err := refreshScript.Run(held, r.client, []string{key}, token, r.ttl.Milliseconds()).Int64()
		if held.Err() != nil {
			return
		}
		if err != nil || n == 0 {
			log.Printf("noncelock: lease on %s lost (err=%v)", key, err)
			lost(ErrLockLost)
			return
		}
	}
}

// Ping checks connectivity to the Redis server.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
