package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

// 書籍カタログの参照（在庫の更新はInventoryLedgerだけが行う）
type BookRepository interface {
	FindByID(ctx context.Context, bookID int64) (model.Book, error)
	FindByIDs(ctx context.Context, bookIDs []int64) (map[int64]model.Book, error)
}
