package model

import "time"

type StockReason string

const (
	StockReasonOrderReserve   StockReason = "ORDER_RESERVE"
	StockReasonOrderCancel    StockReason = "ORDER_CANCEL"
	StockReasonUserCancel     StockReason = "USER_CANCEL"
	StockReasonDeadlineCancel StockReason = "DEADLINE_CANCEL"
	StockReasonItemCancel     StockReason = "ITEM_CANCEL"
	StockReasonRentalReturn   StockReason = "RENTAL_RETURN"
	StockReasonOrderReturn    StockReason = "ORDER_RETURN"
)

// 在庫増減の履歴（reserveはマイナス、releaseはプラス）
type StockMovement struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	BookID    int64       `gorm:"not null;index" json:"book_id"`
	Delta     int64       `gorm:"not null" json:"delta"`
	Reason    StockReason `gorm:"type:varchar(30);not null" json:"reason"`
	OrderID   *int64      `gorm:"index" json:"order_id,omitempty"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}
