package noncelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

var (
	accountA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	accountB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// exerciseExclusive runs n goroutines through the lock and reports the
// highest number observed inside the critical section at once.
func exerciseExclusive(t *testing.T, l Locker, n int) int32 {
	t.Helper()
	var (
		inside, peak int32
		wg           sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, unlock, err := l.Lock(context.Background(), accountA)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	return peak
}

func TestLocalExclusive(t *testing.T) {
	if peak := exerciseExclusive(t, NewLocal(), 20); peak != 1 {
		t.Errorf("peak holders = %d, want 1", peak)
	}
}

func TestLocalAccountsIndependent(t *testing.T) {
	l := NewLocal()
	_, unlockA, err := l.Lock(context.Background(), accountA)
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, unlockB, err := l.Lock(ctx, accountB)
	if err != nil {
		t.Fatalf("Lock(B) while A held: %v", err)
	}
	unlockB()
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()
	_, unlock, _ := l.Lock(context.Background(), accountA)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := l.Lock(ctx, accountA); err == nil {
		t.Fatal("expected context error while lock held")
	}
}

func TestLocalUnlockIdempotent(t *testing.T) {
	l := NewLocal()
	held, unlock, _ := l.Lock(context.Background(), accountA)
	unlock()
	unlock()
	if held.Err() == nil {
		t.Error("held context still live after unlock")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, again, err := l.Lock(ctx, accountA)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

// memRedis is an in-process stand-in for the commands and scripts the lock
// runs. Expiry follows the wall clock.
type memRedis struct {
	mu      sync.Mutex
	entries map[string]memEntry
	renewed int
}

type memEntry struct {
	val     string
	expires time.Time
}

func newMemRedis() *memRedis {
	return &memRedis{entries: make(map[string]memEntry)}
}

// live returns the value under key, dropping it once expired. Callers hold mu.
func (m *memRedis) live(key string) (string, bool) {
	e, ok := m.entries[key]
	if ok && time.Now().After(e.expires) {
		delete(m.entries, key)
		return "", false
	}
	return e.val, ok
}

func (m *memRedis) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key)
}

func (m *memRedis) set(key, val string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{val: val, expires: time.Now().Add(ttl)}
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewBoolResult(false, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	m.entries[key] = memEntry{val: fmt.Sprint(value), expires: time.Now().Add(ttl)}
	return redis.NewBoolResult(true, nil)
}

func (m *memRedis) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	if err := ctx.Err(); err != nil {
		return redis.NewCmdResult(nil, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.live(keys[0])
	owned := ok && val == args[0]
	switch sha {
	case releaseScript.Hash():
		if !owned {
			return redis.NewCmdResult(int64(0), nil)
		}
		delete(m.entries, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	case refreshScript.Hash():
		if !owned {
			return redis.NewCmdResult(int64(0), nil)
		}
		ms := args[1].(int64)
		m.entries[keys[0]] = memEntry{val: val, expires: time.Now().Add(time.Duration(ms) * time.Millisecond)}
		m.renewed++
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(nil, errors.New("NOSCRIPT unknown script"))
}

func (m *memRedis) Eval(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("EVAL not supported"))
}

func (m *memRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *memRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *memRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	out := make([]bool, len(hashes))
	for i, h := range hashes {
		out[i] = h == releaseScript.Hash() || h == refreshScript.Hash()
	}
	return redis.NewBoolSliceResult(out, nil)
}

func (m *memRedis) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", errors.New("SCRIPT LOAD not supported"))
}

func (m *memRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestRedisExclusive(t *testing.T) {
	l := newRedis(newMemRedis(), "test", 5*time.Second)
	l.poll = 2 * time.Millisecond
	if peak := exerciseExclusive(t, l, 10); peak != 1 {
		t.Errorf("peak holders = %d, want 1", peak)
	}
}

func TestRedisReleaseChecksToken(t *testing.T) {
	mem := newMemRedis()
	l := newRedis(mem, "test", 5*time.Second)

	_, unlock, err := l.Lock(context.Background(), accountA)
	if err != nil {
		t.Fatal(err)
	}
	// simulate expiry and takeover by another holder
	key := l.key(accountA)
	mem.set(key, "other-holder", time.Minute)
	unlock()

	if v, _ := mem.get(key); v != "other-holder" {
		t.Errorf("key = %q, want other-holder untouched", v)
	}
}

func TestRedisRenewsLeaseWhileHeld(t *testing.T) {
	mem := newMemRedis()
	l := newRedis(mem, "test", 150*time.Millisecond)
	l.poll = 5 * time.Millisecond

	held, unlock, err := l.Lock(context.Background(), accountA)
	if err != nil {
		t.Fatal(err)
	}
	// outlive the TTL several times over
	time.Sleep(500 * time.Millisecond)

	if held.Err() != nil {
		t.Fatalf("held context done while lease renewed: %v", context.Cause(held))
	}
	if _, ok := mem.get(l.key(accountA)); !ok {
		t.Fatal("lease expired while holder still working")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := l.Lock(ctx, accountA); err == nil {
		t.Fatal("second holder acquired a renewed lease")
	}

	unlock()
	if held.Err() == nil {
		t.Error("held context still live after unlock")
	}
	if _, ok := mem.get(l.key(accountA)); ok {
		t.Error("key left behind after unlock")
	}
	mem.mu.Lock()
	renewed := mem.renewed
	mem.mu.Unlock()
	if renewed == 0 {
		t.Error("lease never renewed")
	}
}

func TestRedisLostLeaseCancelsHeld(t *testing.T) {
	mem := newMemRedis()
	l := newRedis(mem, "test", 90*time.Millisecond)

	held, unlock, err := l.Lock(context.Background(), accountA)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()
	mem.set(l.key(accountA), "other-holder", time.Minute)

	select {
	case <-held.Done():
	case <-time.After(time.Second):
		t.Fatal("held context not cancelled after takeover")
	}
	if cause := context.Cause(held); !errors.Is(cause, ErrLockLost) {
		t.Errorf("cause = %v, want ErrLockLost", cause)
	}
}

func TestRedisHonoursContext(t *testing.T) {
	l := newRedis(newMemRedis(), "test", time.Minute)
	l.poll = 2 * time.Millisecond
	_, unlock, err := l.Lock(context.Background(), accountA)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := l.Lock(ctx, accountA); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRedisKey(t *testing.T) {
	l := NewRedis(nil, "", 0)
	if got := l.key(accountA); got != "supplygate:nonce:0x00000000000000000000000000000000000000a1" {
		t.Errorf("key = %q", got)
	}
	if l.ttl != defaultTTL {
		t.Errorf("ttl = %v, want %v", l.ttl, defaultTTL)
	}
}

// TestRedisLiveExclusive runs against a real server when one is configured.
func TestRedisLiveExclusive(t *testing.T) {
	addr := os.Getenv("SUPPLYGATE_TEST_REDIS")
	if addr == "" {
		t.Skip("SUPPLYGATE_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	l := NewRedis(client, "supplygate-test-"+t.Name(), 5*time.Second)
	l.poll = 2 * time.Millisecond
	if peak := exerciseExclusive(t, l, 10); peak != 1 {
		t.Errorf("peak holders = %d, want 1", peak)
	}
}
