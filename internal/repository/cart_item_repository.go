package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	CountByCartID(ctx context.Context, cartID int64) (int64, error)
	// 同じ本が何冊入っているか
	CountByCartAndBook(ctx context.Context, cartID int64, bookID int64) (int64, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	DeleteByID(ctx context.Context, cartItemID int64) error
}
