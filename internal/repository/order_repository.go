package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

// スタッフ用の注文一覧条件
type StaffOrderListFilter struct {
	Page          int
	Limit         int
	OrderID       *int64
	Email         string
	Status        string
	PickupPointID *int64
	// "asc" or "desc"
	SortDirection string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 同じ注文への遷移を直列化する（SELECT ... FOR UPDATE）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	// ステータスと時刻を保存
	Save(ctx context.Context, order model.Order) error

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	ListStaff(ctx context.Context, f StaffOrderListFilter) ([]model.Order, int64, error)

	// 受け取り期限切れ候補のID
	ListExpiredPickupIDs(ctx context.Context, createdBefore time.Time) ([]int64, error)
	CountByUserAndStatuses(ctx context.Context, userID int64, statuses []model.OrderStatus) (int64, error)
}
