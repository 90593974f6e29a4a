package repository

import (
	"context"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

var _ repo.OrderRepository = (*OrderGormRepository)(nil)

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if isNotFound(err) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 行ロックを取ってから読む（Tx内で使う）
func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&o).Error
	if isNotFound(err) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

// nilの時刻もそのまま書き込むのでmapで更新する
func (r *OrderGormRepository) Save(ctx context.Context, order model.Order) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":       order.Status,
			"paid_at":      order.PaidAt,
			"delivered_at": order.DeliveredAt,
			"refunded_at":  order.RefundedAt,
			"updated_at":   order.UpdatedAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 新しい順
func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListStaff(ctx context.Context, f repo.StaffOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	if f.OrderID != nil {
		q = q.Where("orders.id = ?", *f.OrderID)
	}

	//email 部分一致（大文字小文字を区別しない）
	if email := strings.TrimSpace(f.Email); email != "" {
		q = q.Joins("JOIN users ON users.id = orders.user_id").
			Where(`users.email ILIKE ? ESCAPE '\'`, "%"+escapeLike(email)+"%")
	}

	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}

	if f.PickupPointID != nil {
		q = q.Where("orders.pickup_point_id = ?", *f.PickupPointID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	dir := "desc"
	if strings.EqualFold(f.SortDirection, "asc") {
		dir = "asc"
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Select("orders.*").
		Order("orders.created_at " + dir).
		Order("orders.id " + dir).
		Limit(f.Limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 受け取り待ちのまま期限を過ぎた注文
func (r *OrderGormRepository) ListExpiredPickupIDs(ctx context.Context, createdBefore time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("status IN ? AND created_at < ?", []model.OrderStatus{
			model.OrderStatusReadyForPickup,
			model.OrderStatusReadyForPickupUnpaid,
		}, createdBefore).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *OrderGormRepository) CountByUserAndStatuses(ctx context.Context, userID int64, statuses []model.OrderStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Count(&n).Error
	return n, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// 入力の % と _ を文字として扱う
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
