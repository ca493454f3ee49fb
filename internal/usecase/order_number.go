package usecase

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// 注文番号の最大再試行回数（一意制約に当たったら作り直す）
const maxOrderNumberAttempts = 5

// ORD-<unix ms>-<000..999>
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", now.UnixMilli(), rand.IntN(1000))
}
