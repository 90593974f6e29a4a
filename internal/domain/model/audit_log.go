package model

import "time"

// スタッフによる注文操作
type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//明細ステータスを更新した操作。
	AuditActionUpdateOrderItemStatus AuditAction = "UPDATE_ORDER_ITEM_STATUS"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourceOrderItem AuditResourceType = "order_item"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したスタッフのID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`
	ActorRole   Role  `gorm:"type:varchar(20);not null" json:"actor_role"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null" json:"resource_id"`

	//明細の操作でも親の注文IDを入れる
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
