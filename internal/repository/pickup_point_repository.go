package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type PickupPointRepository interface {
	FindByID(ctx context.Context, id int64) (model.PickupPoint, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]model.PickupPoint, error)
}
