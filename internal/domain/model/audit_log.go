package model

import "time"

// 注文ステータス更新、決済確定など。
type AuditAction string

const (
	//店舗が注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//決済が確定した。
	AuditActionPaymentSettled AuditAction = "PAYMENT_SETTLED"
	//決済が失敗・期限切れになった。
	AuditActionPaymentFailed AuditAction = "PAYMENT_FAILED"
	//取消済みの注文に入金があり、返金が必要。
	AuditActionPaymentRefundRequired AuditAction = "PAYMENT_REFUND_REQUIRED"
	//管理ツールからカートを空にした。
	AuditActionCartCleared AuditAction = "CART_CLEARED"
)

// 何に対する操作か
type AuditResourceType string

const (
	//注文に対する操作。
	AuditResourceOrder AuditResourceType = "order"

	//カートに対する操作。
	AuditResourceCart AuditResourceType = "cart"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した主体の種類（customer / store / system）。
	ActorType string `gorm:"type:varchar(20);not null;index" json:"actor_type"`

	//操作した主体のID。systemなら0。
	ActorID int64 `gorm:"not null;index" json:"actor_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index:ix_audit_resource,priority:1" json:"resource_type"`

	ResourceID int64 `gorm:"not null;index:ix_audit_resource,priority:2" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// 決済ゲートウェイからのwebhookなど、人ではない操作主体
const AuditActorSystem = "system"
