package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	FindByID(ctx context.Context, itemID int64) (model.OrderItem, error)
	Save(ctx context.Context, item model.OrderItem) error
	CountByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64]int64, error)

	// 返却期限を過ぎたRENTED明細のID
	ListOverdueRentalIDs(ctx context.Context, now time.Time) ([]int64, error)
	ListRentalsByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.OrderItem, int64, error)
	CountOverdueByUserID(ctx context.Context, userID int64) (int64, error)
}
