package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/orderflow"
	"bookstore/internal/logger"
	repo "bookstore/internal/repository"

	"github.com/hashicorp/go-multierror"
)

// SweepResult は1回のスイープの集計
type SweepResult struct {
	Scanned int
	Changed int
	Skipped int
	Failed  int
	// 個別の失敗をまとめたもの（失敗が無ければnil）
	Err error
}

// ReconcileUsecase は定期ジョブ。1件ごとにTxを分け、失敗しても残りは続ける
type ReconcileUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	clock      Clock
	deadline   time.Duration
}

func NewReconcileUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	clock Clock,
	deadline time.Duration,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		clock:      clock,
		deadline:   deadline,
	}
}

// CancelExpiredOrders は受け取り期限切れの注文をキャンセルし、PENDING明細の在庫を戻す
func (u *ReconcileUsecase) CancelExpiredOrders(ctx context.Context) SweepResult {
	log := logger.FromContext(ctx)
	now := u.clock.Now()

	ids, err := u.orders.ListExpiredPickupIDs(ctx, now.Add(-u.deadline))
	if err != nil {
		log.WithError(err).Error("list expired orders failed")
		return SweepResult{Failed: 1, Err: err}
	}

	var res SweepResult
	var errs *multierror.Error
	res.Scanned = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}

		changed, err := u.cancelExpired(ctx, id, now)
		switch {
		case err != nil:
			res.Failed++
			errs = multierror.Append(errs, fmt.Errorf("order %d: %w", id, err))
			log.WithError(err).WithField("order_id", id).Error("cancel expired order failed")
		case changed:
			res.Changed++
		default:
			res.Skipped++
		}
	}

	res.Err = errs.ErrorOrNil()
	log.Infof("cancelled %d/%d expired orders", res.Changed, res.Scanned)
	return res
}

// ロック後に条件を見直す（他の操作と競合していたらスキップ）
func (u *ReconcileUsecase) cancelExpired(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	changed := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if !orderflow.IsPickupExpired(order, now, u.deadline) {
			return nil
		}

		t, err := orderflow.Plan(order, orderflow.ActorDeadline, orderflow.DeadlineCancelTarget(order))
		if errors.Is(err, orderflow.ErrSkip) {
			return nil
		}
		if err != nil {
			return fromRule(err)
		}

		if err := applyTransition(ctx, r, &order, t, model.StockReasonDeadlineCancel, now); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// MarkOverdueRentals は返却期限を過ぎたRENTED明細をOVERDUEにする
func (u *ReconcileUsecase) MarkOverdueRentals(ctx context.Context) SweepResult {
	log := logger.FromContext(ctx)
	now := u.clock.Now()

	ids, err := u.orderItems.ListOverdueRentalIDs(ctx, now)
	if err != nil {
		log.WithError(err).Error("list overdue rentals failed")
		return SweepResult{Failed: 1, Err: err}
	}

	var res SweepResult
	var errs *multierror.Error
	res.Scanned = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}

		changed, err := u.markOverdue(ctx, id, now)
		switch {
		case err != nil:
			res.Failed++
			errs = multierror.Append(errs, fmt.Errorf("order item %d: %w", id, err))
			log.WithError(err).WithField("order_item_id", id).Error("mark overdue failed")
		case changed:
			res.Changed++
		default:
			res.Skipped++
		}
	}

	res.Err = errs.ErrorOrNil()
	log.Infof("marked %d/%d rentals overdue", res.Changed, res.Scanned)
	return res
}

func (u *ReconcileUsecase) markOverdue(ctx context.Context, itemID int64, now time.Time) (bool, error) {
	changed := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := r.OrderItems().FindByID(ctx, itemID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order item not found: %d", itemID)
		}
		if err != nil {
			return internalError(err)
		}

		// 注文単位で直列化してから読み直す
		if _, err := lockOrder(ctx, r, item.OrderID); err != nil {
			return err
		}
		if item, err = r.OrderItems().FindByID(ctx, itemID); err != nil {
			return internalError(err)
		}

		c := orderflow.MarkOverdue(item, now)
		if !c.Changed {
			return nil
		}
		if err := r.OrderItems().Save(ctx, c.Item); err != nil {
			return internalError(err)
		}
		changed = true
		return nil
	})
	return changed, err
}
