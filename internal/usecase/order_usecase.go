package usecase

import (
	"context"
	"errors"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/orderflow"
	"bookstore/internal/logger"
	repo "bookstore/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderUsecase は利用者側の注文操作（作成・キャンセル・返金）と決済通知を扱う。
type OrderUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewOrderUsecase(tx repo.TransactionManager, clock Clock) *OrderUsecase {
	return &OrderUsecase{tx: tx, clock: clock}
}

// CreateOrderFromCart はカートから注文を作る。
// 在庫確保・注文作成・カート削除は1つのTxで、どれか失敗したら全部戻る
func (u *OrderUsecase) CreateOrderFromCart(ctx context.Context, userID int64, pickupPointID int64) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, newError(KindUnauthorized, "unauthorized")
	}
	if pickupPointID <= 0 {
		return model.Order{}, validationError("invalid pickup_point_id")
	}

	var created model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserIDForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderError("Cannot create order: cart is empty")
		}
		if err != nil {
			return internalError(err)
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return internalError(err)
		}
		if len(cartItems) == 0 {
			return orderError("Cannot create order: cart is empty")
		}

		pp, err := r.PickupPoints().FindByID(ctx, pickupPointID)
		if (err == nil && !pp.IsActive) || errors.Is(err, repo.ErrNotFound) {
			return orderError("Invalid or inactive pickup point: %d", pickupPointID)
		}
		if err != nil {
			return internalError(err)
		}

		books, err := r.Books().FindByIDs(ctx, lo.Uniq(lo.Map(cartItems, func(ci model.CartItem, _ int) int64 { return ci.BookID })))
		if err != nil {
			return internalError(err)
		}

		//価格は注文時点で確定させる
		now := u.clock.Now()
		total := decimal.Zero
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		for _, ci := range cartItems {
			book, ok := books[ci.BookID]
			if !ok {
				return notFound("Book not found: %d", ci.BookID)
			}
			price := priceLine(book, ci.Type, ci.RentalDays)
			total = total.Add(price.Final)
			orderItems = append(orderItems, model.OrderItem{
				BookID:     ci.BookID,
				Type:       ci.Type,
				RentalDays: ci.RentalDays,
				ItemStatus: model.ItemStatusPending,
				Price:      price.Final,
				CreatedAt:  now,
			})
		}

		order := model.Order{
			UserID:        userID,
			PickupPointID: pickupPointID,
			Status:        model.OrderStatusCreated,
			TotalPrice:    total,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return internalError(err)
		}
		order.ID = orderID

		//1冊ずつ確保。足りなければTxごとロールバック
		for _, it := range sortedByBook(orderItems, func(it model.OrderItem) int64 { return it.BookID }) {
			err := r.Inventory().Reserve(ctx, it.BookID, 1, repo.StockRef{Reason: model.StockReasonOrderReserve, OrderID: &orderID})
			switch {
			case errors.Is(err, repo.ErrOutOfStock):
				return newError(KindOutOfStock, "Book out of stock: %d", it.BookID)
			case errors.Is(err, repo.ErrNotFound):
				return notFound("Book not found: %d", it.BookID)
			case err != nil:
				return internalError(err)
			}
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return internalError(err)
		}

		if err := r.Carts().Delete(ctx, cart.ID); err != nil {
			return internalError(err)
		}

		created = order
		return nil
	})

	if err != nil {
		return model.Order{}, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"order_id": created.ID,
		"user_id":  userID,
		"total":    created.TotalPrice.String(),
	}).Info("order created")

	return created, nil
}

// ConfirmPayment は外部の決済通知で呼ばれる（CREATEDのときだけPAIDにする）
func (u *OrderUsecase) ConfirmPayment(ctx context.Context, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, validationError("invalid order_id")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		t, err := orderflow.Plan(order, orderflow.ActorPayment, model.OrderStatusPaid)
		if err != nil {
			return fromRule(err)
		}
		if err := applyTransition(ctx, r, &order, t, model.StockReasonOrderCancel, u.clock.Now()); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	logger.FromContext(ctx).WithField("order_id", orderID).Info("payment confirmed")
	return out, nil
}

// CancelOrderByUser は利用者自身のキャンセル。支払い済みかで遷移先が変わる
func (u *OrderUsecase) CancelOrderByUser(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, newError(KindUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, validationError("invalid order_id")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOwnedOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}

		t, err := orderflow.Plan(order, orderflow.ActorUser, orderflow.UserCancelTarget(order))
		if err != nil {
			return fromRule(err)
		}
		if err := applyTransition(ctx, r, &order, t, model.StockReasonUserCancel, u.clock.Now()); err != nil {
			return err
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
	}).Info("order cancelled by user")
	return out, nil
}

// ProcessRefund は返金済みの印を付ける（ステータスは変えない）
func (u *OrderUsecase) ProcessRefund(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, newError(KindUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, validationError("invalid order_id")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOwnedOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}
		if err := orderflow.CheckRefund(order); err != nil {
			return fromRule(err)
		}

		now := u.clock.Now()
		order.RefundedAt = &now
		order.UpdatedAt = now
		if err := r.Orders().Save(ctx, order); err != nil {
			return internalError(err)
		}
		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

func lockOrder(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	order, err := r.Orders().FindByIDForUpdate(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFound("Order not found: %d", orderID)
	}
	if err != nil {
		return model.Order{}, internalError(err)
	}
	return order, nil
}

func lockOwnedOrder(ctx context.Context, r repo.TxRepos, userID int64, orderID int64) (model.Order, error) {
	order, err := lockOrder(ctx, r, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if order.UserID != userID {
		return model.Order{}, forbidden("Access denied to order: %d", orderID)
	}
	return order, nil
}
