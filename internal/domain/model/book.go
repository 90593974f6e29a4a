package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 書籍（カタログ側が持つ。在庫はInventoryLedger経由でのみ変更する）
type Book struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title      string `gorm:"type:varchar(255);not null" json:"title"`
	AuthorName string `gorm:"type:varchar(255);not null;default:''" json:"author_name"`
	ImageURL   string `gorm:"type:text;not null;default:''" json:"image_url"`

	//購入価格
	PurchasePrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"purchase_price"`

	//レンタル1日あたりの価格
	RentalPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"rental_price"`

	//割引率（%）。レンタルには適用しない
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percent"`

	//在庫数（0未満にならない）
	StockQuantity int64 `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
