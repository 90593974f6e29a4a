package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type PickupPointGormRepository struct {
	db *gorm.DB
}

func NewPickupPointGormRepository(db *gorm.DB) *PickupPointGormRepository {
	return &PickupPointGormRepository{db: db}
}

func (r *PickupPointGormRepository) FindByID(ctx context.Context, id int64) (model.PickupPoint, error) {
	var p model.PickupPoint
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if isNotFound(err) {
		return model.PickupPoint{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PickupPoint{}, err
	}
	return p, nil
}

func (r *PickupPointGormRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.PickupPoint, error) {
	out := make(map[int64]model.PickupPoint, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var points []model.PickupPoint
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&points).Error; err != nil {
		return nil, err
	}
	for _, p := range points {
		out[p.ID] = p
	}
	return out, nil
}
