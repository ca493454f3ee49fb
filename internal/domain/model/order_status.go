package model

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// 前進方向の順序。cancelledは別扱い
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusPreparing:      2,
	OrderStatusOutForDelivery: 3,
	OrderStatusDelivered:      4,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if st == OrderStatusCancelled {
		return st, true
	}
	_, ok := orderStatusRank[st]
	return st, ok
}

// 終端（delivered / cancelled）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo は店舗側の遷移ルール。
// 前進（飛ばしてもよい）と、終端以外からのcancelledのみ許可。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// PaymentStatusAfter は遷移に伴う支払いステータスを返す。
// 変化しないときは current をそのまま返す。
func PaymentStatusAfter(next OrderStatus, method PaymentMethod, current PaymentStatus) PaymentStatus {
	switch next {
	case OrderStatusDelivered:
		// 代引きは配達時に回収済みとする
		if method == PaymentMethodCash && current == PaymentStatusPending {
			return PaymentStatusCompleted
		}
	case OrderStatusCancelled:
		switch current {
		case PaymentStatusCompleted:
			return PaymentStatusRefunded
		case PaymentStatusPending:
			return PaymentStatusFailed
		}
	}
	return current
}
