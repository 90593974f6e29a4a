package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusDelivered ItemStatus = "DELIVERED"
	ItemStatusRented    ItemStatus = "RENTED"
	ItemStatusOverdue   ItemStatus = "OVERDUE"
	ItemStatusReturned  ItemStatus = "RETURNED"
	ItemStatusCancelled ItemStatus = "CANCELLED"
)

func ParseItemStatus(s string) (ItemStatus, bool) {
	switch st := ItemStatus(s); st {
	case ItemStatusPending, ItemStatusDelivered, ItemStatusRented,
		ItemStatusOverdue, ItemStatusReturned, ItemStatusCancelled:
		return st, true
	}
	return "", false
}

// これ以上変わらない
func (s ItemStatus) IsFinal() bool {
	return s == ItemStatusReturned || s == ItemStatusCancelled
}

type OrderItem struct {
	ID      int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64    `gorm:"not null;index" json:"order_id"`
	BookID  int64    `gorm:"not null;index" json:"book_id"`
	Type    ItemType `gorm:"type:varchar(10);not null" json:"type"`

	RentalDays    *int       `json:"rental_days,omitempty"`
	RentalStartAt *time.Time `json:"rental_start_at,omitempty"`
	RentalEndAt   *time.Time `gorm:"index" json:"rental_end_at,omitempty"`

	ItemStatus ItemStatus `gorm:"type:varchar(20);not null;index" json:"item_status"`

	//注文時点の確定価格
	Price decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
