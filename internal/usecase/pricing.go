package usecase

import (
	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// 明細1件の価格
type LinePrice struct {
	Original        decimal.Decimal
	Final           decimal.Decimal
	DiscountPercent decimal.Decimal
}

// BUY: 購入価格 × (1 - 割引率/100)
// RENT: 1日の価格 × 日数（割引なし）
func priceLine(b model.Book, t model.ItemType, rentalDays *int) LinePrice {
	if t == model.ItemTypeRent {
		days := 0
		if rentalDays != nil {
			days = *rentalDays
		}
		p := b.RentalPrice.Mul(decimal.NewFromInt(int64(days))).Round(2)
		return LinePrice{Original: p, Final: p, DiscountPercent: decimal.Zero}
	}

	original := b.PurchasePrice.Round(2)
	final := b.PurchasePrice.Mul(hundred.Sub(b.DiscountPercent)).Div(hundred).Round(2)
	return LinePrice{Original: original, Final: final, DiscountPercent: b.DiscountPercent}
}
