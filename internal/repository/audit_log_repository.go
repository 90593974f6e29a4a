package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

// スタッフ操作の履歴
type AuditLogRepository interface {
	// 呼び出し側のTxで1件追記する
	Append(ctx context.Context, log model.AuditLog) error

	// 注文と配下の明細に対する操作を新しい順にlimit件まで返す
	ListForOrder(ctx context.Context, orderID int64, limit int) ([]model.AuditLog, error)
}
