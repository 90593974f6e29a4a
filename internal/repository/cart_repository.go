package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type CartRepository interface {
	// 無ければErrNotFound
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 行ロックを取って返す。無ければ作る
	GetOrCreateForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	// 行ロックを取って返す。無ければErrNotFound
	FindByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	Touch(ctx context.Context, cartID int64) error
	// 明細ごと削除
	Delete(ctx context.Context, cartID int64) error
}
