package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type BookGormRepository struct {
	db *gorm.DB
}

// DI
func NewBookGormRepository(db *gorm.DB) *BookGormRepository {
	return &BookGormRepository{db: db}
}

func (r *BookGormRepository) FindByID(ctx context.Context, bookID int64) (model.Book, error) {
	var b model.Book
	err := r.db.WithContext(ctx).Where("id = ?", bookID).First(&b).Error
	if isNotFound(err) {
		return model.Book{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Book{}, err
	}
	return b, nil
}

// 見つからないIDはmapに入らない
func (r *BookGormRepository) FindByIDs(ctx context.Context, bookIDs []int64) (map[int64]model.Book, error) {
	out := make(map[int64]model.Book, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}

	var books []model.Book
	if err := r.db.WithContext(ctx).Where("id IN ?", bookIDs).Find(&books).Error; err != nil {
		return nil, err
	}
	for _, b := range books {
		out[b.ID] = b
	}
	return out, nil
}
