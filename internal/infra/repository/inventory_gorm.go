package repository

import (
	"context"
	"fmt"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

// 在庫の増減はここだけで行う
type InventoryGormRepository struct {
	db    *gorm.DB
	clock repo.Clock
}

func NewInventoryGormRepository(db *gorm.DB, clock repo.Clock) *InventoryGormRepository {
	return &InventoryGormRepository{db: db, clock: clock}
}

var _ repo.InventoryLedger = (*InventoryGormRepository)(nil)

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) Reserve(ctx context.Context, bookID int64, qty int64, ref repo.StockRef) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity: %d", qty)
	}

	res := r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ? AND stock_quantity >= ?", bookID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		//本が無いのか在庫不足なのかを区別する
		var n int64
		if err := r.db.WithContext(ctx).Model(&model.Book{}).Where("id = ?", bookID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return repo.ErrNotFound
		}
		return repo.ErrOutOfStock
	}

	return r.journal(ctx, bookID, -qty, ref)
}

// 在庫戻し（キャンセル・返却）
func (r *InventoryGormRepository) Release(ctx context.Context, bookID int64, qty int64, ref repo.StockRef) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity: %d", qty)
	}

	res := r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}

	return r.journal(ctx, bookID, qty, ref)
}

// 増減履歴を同じTxで残す
func (r *InventoryGormRepository) journal(ctx context.Context, bookID int64, delta int64, ref repo.StockRef) error {
	mv := model.StockMovement{
		BookID:    bookID,
		Delta:     delta,
		Reason:    ref.Reason,
		OrderID:   ref.OrderID,
		CreatedAt: r.clock.Now(),
	}
	return r.db.WithContext(ctx).Create(&mv).Error
}
