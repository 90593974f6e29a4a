package repository

import (
	"bookstore/internal/domain/model"
	"context"
)

type UserRepository interface {
	// IDからユーザーを1件取得する。無ければErrNotFound
	FindByID(ctx context.Context, userID int64) (model.User, error)
	// 一覧表示用（メールアドレスの解決）
	FindByIDs(ctx context.Context, userIDs []int64) (map[int64]model.User, error)
}
