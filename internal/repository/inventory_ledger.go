package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

// 在庫変更の理由と紐づく注文
type StockRef struct {
	Reason  model.StockReason
	OrderID *int64
}

// 在庫数を変更できる唯一の窓口。
type InventoryLedger interface {
	// 在庫がqty以上あるときだけ減らす。足りなければErrOutOfStock
	Reserve(ctx context.Context, bookID int64, qty int64, ref StockRef) error
	// 在庫を戻す
	Release(ctx context.Context, bookID int64, qty int64, ref StockRef) error
}
