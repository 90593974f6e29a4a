package model

import "time"

// 購入かレンタルか
type ItemType string

const (
	ItemTypeBuy  ItemType = "BUY"
	ItemTypeRent ItemType = "RENT"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeBuy || t == ItemTypeRent
}

type CartItem struct {
	ID     int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID int64    `gorm:"not null;index" json:"cart_id"`
	BookID int64    `gorm:"not null;index" json:"book_id"`
	Type   ItemType `gorm:"type:varchar(10);not null" json:"type"`

	//RENTのときだけ入る
	RentalDays *int `json:"rental_days,omitempty"`

	AddedAt time.Time `gorm:"not null" json:"added_at"`
}
