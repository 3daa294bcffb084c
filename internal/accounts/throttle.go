package accounts

import (
	"context"
	"sync"
	"time"

	"hr-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Throttle limits failed logins per key (the normalized email) inside a
// rolling lockout window.
type Throttle interface {
	// Allowed reports whether another attempt may be made.
	Allowed(ctx context.Context, key string) (bool, error)
	// Failed counts one failed attempt.
	Failed(ctx context.Context, key string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}

// RedisThrottle shares attempt counters across API instances.
type RedisThrottle struct {
	rdb         *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisThrottle(rdb *redis.Client, maxAttempts int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, maxAttempts: int64(maxAttempts), window: window}
}

func throttleKey(key string) string { return "hr:login_attempts:" + key }

func (t *RedisThrottle) Allowed(ctx context.Context, key string) (bool, error) {
	n, err := utils.WindowCount(ctx, t.rdb, throttleKey(key))
	if err != nil {
		return false, err
	}
	return n < t.maxAttempts, nil
}

func (t *RedisThrottle) Failed(ctx context.Context, key string) error {
	_, err := utils.IncrWindowCounter(ctx, t.rdb, throttleKey(key), t.window)
	return err
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return utils.ResetWindowCounter(ctx, t.rdb, throttleKey(key))
}

// MemoryThrottle is the single-process fallback used when Redis is not
// configured.
type MemoryThrottle struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	clock       func() time.Time
	entries     map[string]attemptWindow
}

type attemptWindow struct {
	count   int
	expires time.Time
}

func NewMemoryThrottle(maxAttempts int, window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		maxAttempts: maxAttempts,
		window:      window,
		clock:       time.Now,
		entries:     map[string]attemptWindow{},
	}
}

func (t *MemoryThrottle) Allowed(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked(key).count < t.maxAttempts, nil
}

func (t *MemoryThrottle) Failed(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.currentLocked(key)
	if w.count == 0 {
		// Window starts at the first failure, like PEXPIRE on first INCR.
		w.expires = t.clock().Add(t.window)
	}
	w.count++
	t.entries[key] = w
	return nil
}

func (t *MemoryThrottle) Reset(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

func (t *MemoryThrottle) currentLocked(key string) attemptWindow {
	w, ok := t.entries[key]
	if !ok {
		return attemptWindow{}
	}
	if !t.clock().Before(w.expires) {
		delete(t.entries, key)
		return attemptWindow{}
	}
	return w
}
