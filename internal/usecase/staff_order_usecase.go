package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/orderflow"
	"bookstore/internal/logger"
	repo "bookstore/internal/repository"

	"github.com/sirupsen/logrus"
)

// StaffOrderUsecase は管理者・拠点スタッフによるステータス変更。
// 実行者(StaffIdentity)は呼び出し側から明示的に渡す
type StaffOrderUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewStaffOrderUsecase(tx repo.TransactionManager, clock Clock) *StaffOrderUsecase {
	return &StaffOrderUsecase{tx: tx, clock: clock}
}

// 拠点スタッフは担当拠点の注文だけ。管理者は全て
func checkStaffAccess(actor model.StaffIdentity, order model.Order) error {
	switch actor.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleWorker:
		if actor.PickupPointID == nil {
			return orderError("Worker must be assigned to a pickup point")
		}
		if *actor.PickupPointID != order.PickupPointID {
			return orderError("Access denied: order belongs to different pickup point")
		}
		return nil
	}
	return forbidden("staff only")
}

type orderAuditView struct {
	Status      model.OrderStatus `json:"status"`
	PaidAt      *time.Time        `json:"paid_at"`
	DeliveredAt *time.Time        `json:"delivered_at"`
}

type itemAuditView struct {
	ItemStatus  model.ItemStatus `json:"item_status"`
	RentalEndAt *time.Time       `json:"rental_end_at"`
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UpdateOrderStatus はスタッフによる注文ステータス変更
func (u *StaffOrderUsecase) UpdateOrderStatus(ctx context.Context, actor model.StaffIdentity, orderID int64, status string) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, newError(KindUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, validationError("invalid id")
	}
	newStatus, ok := model.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return model.Order{}, validationError("invalid status")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if err := checkStaffAccess(actor, order); err != nil {
			return err
		}

		t, err := orderflow.Plan(order, orderflow.ActorStaff, newStatus)
		if err != nil {
			return fromRule(err)
		}
		// すでに同じなら何もしない
		if t.Noop() {
			out = order
			return nil
		}

		before := orderAuditView{Status: order.Status, PaidAt: order.PaidAt, DeliveredAt: order.DeliveredAt}
		now := u.clock.Now()
		if err := applyTransition(ctx, r, &order, t, model.StockReasonOrderCancel, now); err != nil {
			return err
		}
		after := orderAuditView{Status: order.Status, PaidAt: order.PaidAt, DeliveredAt: order.DeliveredAt}

		//監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Append(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			ActorRole:    actor.Role,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			OrderID:      orderID,
			BeforeJSON:   toJSON(before),
			AfterJSON:    toJSON(after),
			CreatedAt:    now,
		}); err != nil {
			return internalError(err)
		}

		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   out.Status,
		"actor_id": actor.UserID,
	}).Info("order status updated")
	return out, nil
}

// UpdateOrderItemStatus は明細1件のステータス変更
func (u *StaffOrderUsecase) UpdateOrderItemStatus(ctx context.Context, actor model.StaffIdentity, itemID int64, status string) (model.OrderItem, error) {
	if actor.UserID <= 0 {
		return model.OrderItem{}, newError(KindUnauthorized, "unauthorized")
	}
	if itemID <= 0 {
		return model.OrderItem{}, validationError("invalid id")
	}
	newStatus, ok := model.ParseItemStatus(strings.TrimSpace(status))
	if !ok {
		return model.OrderItem{}, validationError("invalid status")
	}

	var out model.OrderItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := r.OrderItems().FindByID(ctx, itemID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order item not found")
		}
		if err != nil {
			return internalError(err)
		}

		// 注文単位で直列化してから明細を読み直す
		order, err := lockOrder(ctx, r, item.OrderID)
		if err != nil {
			return err
		}
		if err := checkStaffAccess(actor, order); err != nil {
			return err
		}
		if item, err = r.OrderItems().FindByID(ctx, itemID); err != nil {
			return internalError(err)
		}

		now := u.clock.Now()
		change, err := orderflow.PlanItem(order, item, newStatus, now)
		if err != nil {
			return fromRule(err)
		}
		if !change.Changed {
			out = item
			return nil
		}

		reason := model.StockReasonItemCancel
		if change.Item.ItemStatus == model.ItemStatusReturned {
			reason = model.StockReasonRentalReturn
		}
		if err := persistItemChanges(ctx, r, order.ID, []orderflow.ItemChange{change}, reason); err != nil {
			return err
		}

		if err := r.AuditLogs().Append(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			ActorRole:    actor.Role,
			Action:       model.AuditActionUpdateOrderItemStatus,
			ResourceType: model.AuditResourceOrderItem,
			ResourceID:   itemID,
			OrderID:      order.ID,
			BeforeJSON:   toJSON(itemAuditView{ItemStatus: item.ItemStatus, RentalEndAt: item.RentalEndAt}),
			AfterJSON:    toJSON(itemAuditView{ItemStatus: change.Item.ItemStatus, RentalEndAt: change.Item.RentalEndAt}),
			CreatedAt:    now,
		}); err != nil {
			return internalError(err)
		}

		out = change.Item
		return nil
	})
	if err != nil {
		return model.OrderItem{}, err
	}
	return out, nil
}
