package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired はctxの期限までにロックが取れなかった
var ErrNotAcquired = errors.New("lock not acquired")

// 取得待ちのポーリング間隔
const retryInterval = 25 * time.Millisecond

func wait(ctx context.Context) error {
	t := time.NewTimer(retryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ErrNotAcquired
	case <-t.C:
		return nil
	}
}
