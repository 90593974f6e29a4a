package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/orderflow"
	repo "bookstore/internal/repository"
)

// applyTransition は計画済みの遷移を注文・明細・在庫へ反映する。
// 呼び出し側で注文行をロック済みであること
func applyTransition(ctx context.Context, r repo.TxRepos, order *model.Order, t orderflow.Transition, cancelReason model.StockReason, now time.Time) error {
	orderflow.Apply(order, t, now)
	if err := r.Orders().Save(ctx, *order); err != nil {
		return internalError(err)
	}

	if !touchesItems(t) {
		return nil
	}

	items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
	if err != nil {
		return internalError(err)
	}

	reason := cancelReason
	if t.Has(orderflow.EffectReturnItems) {
		reason = model.StockReasonOrderReturn
	}
	return persistItemChanges(ctx, r, order.ID, orderflow.ApplyItems(items, t, now), reason)
}

func touchesItems(t orderflow.Transition) bool {
	return t.Has(orderflow.EffectResetItems) ||
		t.Has(orderflow.EffectDeliverItems) ||
		t.Has(orderflow.EffectCancelItems) ||
		t.Has(orderflow.EffectReturnItems)
}

// 在庫戻しの失敗は握りつぶさずTxごと失敗させる
func persistItemChanges(ctx context.Context, r repo.TxRepos, orderID int64, changes []orderflow.ItemChange, reason model.StockReason) error {
	for _, c := range sortedByBook(changes, func(c orderflow.ItemChange) int64 { return c.Item.BookID }) {
		if !c.Changed {
			continue
		}
		if c.Release {
			ref := repo.StockRef{Reason: reason, OrderID: &orderID}
			if err := r.Inventory().Release(ctx, c.Item.BookID, 1, ref); err != nil {
				return internalError(fmt.Errorf("release book %d: %w", c.Item.BookID, err))
			}
		}
		if err := r.OrderItems().Save(ctx, c.Item); err != nil {
			return internalError(err)
		}
	}
	return nil
}

// 在庫行はbook_idの昇順でロックする（確保と戻しで順序を揃える）
func sortedByBook[T any](xs []T, bookID func(T) int64) []T {
	out := append([]T(nil), xs...)
	sort.SliceStable(out, func(i, j int) bool { return bookID(out[i]) < bookID(out[j]) })
	return out
}
