package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker はプロセス内だけで効くロック（REDIS_URL未設定時）
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire はkeyのロックを取る。ttlを過ぎたロックは取り直せる
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error) {
	for {
		if expires, ok := l.tryAcquire(key, ttl); ok {
			return func(context.Context) error {
				l.mu.Lock()
				defer l.mu.Unlock()
				//期限切れ後に他が取り直していたら消さない
				if cur, ok := l.held[key]; ok && cur.Equal(expires) {
					delete(l.held, key)
				}
				return nil
			}, nil
		}
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (l *MemoryLocker) tryAcquire(key string, ttl time.Duration) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return time.Time{}, false
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	return expires, true
}
