package model

import "time"

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodUPI  PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodUPI:
		return true
	}
	return false
}

// 決済ゲートウェイを経由する支払い方法か
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodCard || m == PaymentMethodUPI
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// 入金の処理が済んでいる（確定済みまたは返金扱い）
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusRefunded
}

// 配送先。注文時点の値をそのまま保存する
type DeliveryAddress struct {
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Street  string `gorm:"type:varchar(255);not null" json:"street"`
	City    string `gorm:"type:varchar(255);not null" json:"city"`
	State   string `gorm:"type:varchar(100);not null" json:"state"`
	ZipCode string `gorm:"type:varchar(20);not null" json:"zip_code"`
	Phone   string `gorm:"type:varchar(30);not null" json:"phone"`
}

// 注文。作成後は明細・金額・住所を変更しない。
// 支払い系のカラムは決済確認、ステータス系は店舗側の遷移だけが更新する。
type Order struct {
	ID                       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber              string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	CustomerID               int64           `gorm:"not null;index" json:"customer_id"`
	StoreID                  int64           `gorm:"not null;index:ix_orders_store_created,priority:1;index:ix_orders_store_status,priority:1" json:"store_id"`
	Address                  DeliveryAddress `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	SubtotalCents            int64           `gorm:"not null" json:"subtotal_cents"`
	DeliveryFeeCents         int64           `gorm:"not null" json:"delivery_fee_cents"`
	TaxCents                 int64           `gorm:"not null" json:"tax_cents"`
	AmountCents              int64           `gorm:"not null" json:"amount_cents"`
	PaymentMethod            PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus            PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	OrderStatus              OrderStatus     `gorm:"type:varchar(30);not null;index:ix_orders_store_status,priority:2" json:"order_status"`
	GatewaySessionID         string          `gorm:"type:varchar(255);index" json:"gateway_session_id,omitempty"`
	GatewayPaymentIntentID   string          `gorm:"type:varchar(255)" json:"gateway_payment_intent_id,omitempty"`
	StoreNotes               string          `gorm:"type:text" json:"store_notes,omitempty"`
	EstimatedDeliveryMinutes *int            `json:"estimated_delivery_minutes,omitempty"`
	CreatedAt                time.Time       `gorm:"not null;autoCreateTime;index:ix_orders_store_created,priority:2" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
