package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

var _ repo.OrderItemRepository = (*OrderItemGormRepository)(nil)

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	return nil
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) FindByID(ctx context.Context, itemID int64) (model.OrderItem, error) {
	var it model.OrderItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&it).Error
	if isNotFound(err) {
		return model.OrderItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.OrderItem{}, err
	}
	return it, nil
}

// ステータスとレンタル期間を保存
func (r *OrderItemGormRepository) Save(ctx context.Context, item model.OrderItem) error {
	res := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"item_status":     item.ItemStatus,
			"rental_start_at": item.RentalStartAt,
			"rental_end_at":   item.RentalEndAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderItemGormRepository) CountByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	type row struct {
		OrderID int64
		Cnt     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Select("order_id, count(*) AS cnt").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		out[rw.OrderID] = rw.Cnt
	}
	return out, nil
}

func (r *OrderItemGormRepository) ListOverdueRentalIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("type = ? AND item_status = ? AND rental_end_at < ?", model.ItemTypeRent, model.ItemStatusRented, now).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ユーザーのレンタル明細（新しい順）
func (r *OrderItemGormRepository) ListRentalsByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.OrderItem, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.type = ?", userID, model.ItemTypeRent)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.OrderItem{}, 0, err
	}

	var items []model.OrderItem
	offset := (page - 1) * limit
	if err := q.Select("order_items.*").Order("order_items.id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.OrderItem{}, 0, err
	}
	return items, total, nil
}

func (r *OrderItemGormRepository) CountOverdueByUserID(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.item_status = ?", userID, model.ItemStatusOverdue).
		Count(&n).Error
	return n, err
}
