package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated                   OrderStatus = "CREATED"
	OrderStatusPaid                      OrderStatus = "PAID"
	OrderStatusReadyForPickup            OrderStatus = "READY_FOR_PICKUP"
	OrderStatusReadyForPickupUnpaid      OrderStatus = "READY_FOR_PICKUP_UNPAID"
	OrderStatusDelivered                 OrderStatus = "DELIVERED"
	OrderStatusDeliveredAndPaid          OrderStatus = "DELIVERED_AND_PAID"
	OrderStatusReturned                  OrderStatus = "RETURNED"
	OrderStatusCancelled                 OrderStatus = "CANCELLED"
	OrderStatusCancelledByUserPaid       OrderStatus = "CANCELLED_BY_USER_PAID"
	OrderStatusCancelledByUserUnpaid     OrderStatus = "CANCELLED_BY_USER_UNPAID"
	OrderStatusCancelledByDeadlinePaid   OrderStatus = "CANCELLED_BY_DEADLINE_PAID"
	OrderStatusCancelledByDeadlineUnpaid OrderStatus = "CANCELLED_BY_DEADLINE_UNPAID"
)

var orderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusReadyForPickup,
	OrderStatusReadyForPickupUnpaid,
	OrderStatusDelivered,
	OrderStatusDeliveredAndPaid,
	OrderStatusReturned,
	OrderStatusCancelled,
	OrderStatusCancelledByUserPaid,
	OrderStatusCancelledByUserUnpaid,
	OrderStatusCancelledByDeadlinePaid,
	OrderStatusCancelledByDeadlineUnpaid,
}

// 文字列から注文ステータスへ
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// キャンセル系（どれも終端）
func (s OrderStatus) IsCancelled() bool {
	switch s {
	case OrderStatusCancelled,
		OrderStatusCancelledByUserPaid,
		OrderStatusCancelledByUserUnpaid,
		OrderStatusCancelledByDeadlinePaid,
		OrderStatusCancelledByDeadlineUnpaid:
		return true
	}
	return false
}

func (s OrderStatus) IsDelivered() bool {
	return s == OrderStatusDelivered || s == OrderStatusDeliveredAndPaid
}

func (s OrderStatus) IsReadyForPickup() bool {
	return s == OrderStatusReadyForPickup || s == OrderStatusReadyForPickupUnpaid
}

type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	PickupPointID int64           `gorm:"not null;index" json:"pickup_point_id"`
	Status        OrderStatus     `gorm:"type:varchar(40);not null;index" json:"status"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	PaidAt      *time.Time `json:"paid_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	RefundedAt  *time.Time `json:"refunded_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
