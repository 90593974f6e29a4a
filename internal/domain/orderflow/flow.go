// Package orderflow holds the order and order-item transition tables.
// Nothing here touches persistence: callers load rows, ask for a plan,
// then persist the result and move stock for every released item.
package orderflow

import (
	"errors"
	"fmt"
	"time"

	"bookstore/internal/domain/model"
)

// 誰が遷移を起こすか
type Actor string

const (
	ActorStaff    Actor = "STAFF"
	ActorUser     Actor = "USER"
	ActorPayment  Actor = "PAYMENT"
	ActorDeadline Actor = "DEADLINE"
)

// 遷移に伴う副作用
type Effect string

const (
	EffectStampPaid      Effect = "STAMP_PAID"
	EffectClearPaid      Effect = "CLEAR_PAID"
	EffectStampDelivered Effect = "STAMP_DELIVERED"
	EffectClearDelivered Effect = "CLEAR_DELIVERED"
	EffectResetItems     Effect = "RESET_ITEMS"
	EffectDeliverItems   Effect = "DELIVER_ITEMS"
	EffectCancelItems    Effect = "CANCEL_ITEMS"
	EffectReturnItems    Effect = "RETURN_ITEMS"
)

// 業務ルール違反。メッセージはそのまま利用者に返す
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleErr(format string, args ...any) error {
	return &RuleError{Message: fmt.Sprintf(format, args...)}
}

// スケジューラ向け: 対象外なので何もしない
var ErrSkip = errors.New("orderflow: transition not applicable")

type Transition struct {
	From    model.OrderStatus
	To      model.OrderStatus
	Effects []Effect
}

// 同じステータスへの更新
func (t Transition) Noop() bool {
	return t.From == t.To && len(t.Effects) == 0
}

func (t Transition) Has(e Effect) bool {
	for _, x := range t.Effects {
		if x == e {
			return true
		}
	}
	return false
}

// 遷移先に入るときの副作用
var onEnter = map[model.OrderStatus][]Effect{
	model.OrderStatusCreated:                   {EffectClearPaid},
	model.OrderStatusPaid:                      {EffectStampPaid},
	model.OrderStatusDelivered:                 {EffectStampDelivered, EffectDeliverItems},
	model.OrderStatusDeliveredAndPaid:          {EffectStampDelivered, EffectStampPaid, EffectDeliverItems},
	model.OrderStatusReturned:                  {EffectReturnItems},
	model.OrderStatusCancelled:                 {EffectCancelItems},
	model.OrderStatusCancelledByUserPaid:       {EffectCancelItems},
	model.OrderStatusCancelledByUserUnpaid:     {EffectCancelItems},
	model.OrderStatusCancelledByDeadlinePaid:   {EffectCancelItems},
	model.OrderStatusCancelledByDeadlineUnpaid: {EffectCancelItems},
}

// スタッフが設定できるステータス
var staffTargets = []model.OrderStatus{
	model.OrderStatusCreated,
	model.OrderStatusPaid,
	model.OrderStatusReadyForPickup,
	model.OrderStatusReadyForPickupUnpaid,
	model.OrderStatusDelivered,
	model.OrderStatusDeliveredAndPaid,
	model.OrderStatusCancelled,
}

var userCancels = []model.OrderStatus{
	model.OrderStatusCancelledByUserPaid,
	model.OrderStatusCancelledByUserUnpaid,
}

var deadlineCancels = []model.OrderStatus{
	model.OrderStatusCancelledByDeadlinePaid,
	model.OrderStatusCancelledByDeadlineUnpaid,
}

// 遷移表: actor × 現在 → 許可される遷移先
var edges = map[Actor]map[model.OrderStatus][]model.OrderStatus{
	ActorPayment: {
		model.OrderStatusCreated: {model.OrderStatusPaid},
	},
	ActorUser: {
		model.OrderStatusCreated:              userCancels,
		model.OrderStatusPaid:                 userCancels,
		model.OrderStatusReadyForPickup:       userCancels,
		model.OrderStatusReadyForPickupUnpaid: userCancels,
	},
	ActorDeadline: {
		model.OrderStatusReadyForPickup:       deadlineCancels,
		model.OrderStatusReadyForPickupUnpaid: deadlineCancels,
	},
	ActorStaff: {
		model.OrderStatusCreated:              staffTargets,
		model.OrderStatusPaid:                 staffTargets,
		model.OrderStatusReadyForPickup:       staffTargets,
		model.OrderStatusReadyForPickupUnpaid: staffTargets,
		model.OrderStatusDelivered:            append(staffTargets[:len(staffTargets):len(staffTargets)], model.OrderStatusReturned),
		model.OrderStatusDeliveredAndPaid:     append(staffTargets[:len(staffTargets):len(staffTargets)], model.OrderStatusReturned),
	},
}

func allowed(actor Actor, from, to model.OrderStatus) bool {
	for _, s := range edges[actor][from] {
		if s == to {
			return true
		}
	}
	return false
}

// Plan は遷移の可否を判定し、適用する副作用の並びを返す。
func Plan(order model.Order, actor Actor, to model.OrderStatus) (Transition, error) {
	from := order.Status

	if err := precheck(order, actor, to); err != nil {
		return Transition{}, err
	}
	if from == to {
		return Transition{From: from, To: to}, nil
	}
	if !allowed(actor, from, to) {
		return Transition{}, deny(actor, from, to)
	}

	t := Transition{From: from, To: to}

	// 配達済みから戻すときは配達の副作用を先に取り消す
	rollback := from.IsDelivered() && !to.IsDelivered() && to != model.OrderStatusReturned
	if rollback {
		t.Effects = append(t.Effects, EffectClearDelivered, EffectResetItems)
	}

	for _, e := range onEnter[to] {
		switch e {
		case EffectStampPaid:
			if order.PaidAt != nil {
				continue
			}
		case EffectClearPaid:
			if order.PaidAt == nil {
				continue
			}
		case EffectStampDelivered, EffectDeliverItems:
			// DELIVERED <-> DELIVERED_AND_PAID では再配達しない
			if order.DeliveredAt != nil && !rollback {
				continue
			}
		}
		t.Effects = append(t.Effects, e)
	}
	return t, nil
}

func precheck(order model.Order, actor Actor, to model.OrderStatus) error {
	from := order.Status
	switch actor {
	case ActorPayment:
		if from != model.OrderStatusCreated {
			return ruleErr("Order cannot be paid: invalid status")
		}
	case ActorUser:
		if from.IsCancelled() {
			return ruleErr("Order is already cancelled")
		}
		if from.IsDelivered() || from == model.OrderStatusReturned {
			return ruleErr("Cannot cancel delivered order")
		}
	case ActorDeadline:
		if !from.IsReadyForPickup() {
			return ErrSkip
		}
	case ActorStaff:
		if from.IsCancelled() {
			return ruleErr("Cannot change status of cancelled order")
		}
		if from == model.OrderStatusReturned && to != from {
			return ruleErr("Cannot change status of returned order")
		}
	default:
		return ruleErr("Unknown actor: %s", actor)
	}
	return nil
}

func deny(actor Actor, from, to model.OrderStatus) error {
	switch actor {
	case ActorStaff:
		if to == model.OrderStatusReturned {
			return ruleErr("Order must be delivered before it can be returned")
		}
		return ruleErr("Status %s cannot be set by staff", to)
	case ActorDeadline:
		return ErrSkip
	}
	return ruleErr("Invalid status transition: %s -> %s", from, to)
}

// ユーザーキャンセル時の遷移先（支払い済みかどうか）
func UserCancelTarget(order model.Order) model.OrderStatus {
	if order.PaidAt != nil {
		return model.OrderStatusCancelledByUserPaid
	}
	return model.OrderStatusCancelledByUserUnpaid
}

// 期限切れキャンセル時の遷移先
func DeadlineCancelTarget(order model.Order) model.OrderStatus {
	if order.PaidAt != nil {
		return model.OrderStatusCancelledByDeadlinePaid
	}
	return model.OrderStatusCancelledByDeadlineUnpaid
}

// 受け取り期限を過ぎたか
func IsPickupExpired(order model.Order, now time.Time, deadline time.Duration) bool {
	return order.Status.IsReadyForPickup() && order.CreatedAt.Before(now.Add(-deadline))
}

// Apply は注文本体（ステータスと時刻）に副作用を反映する。
func Apply(order *model.Order, t Transition, now time.Time) {
	order.Status = t.To
	for _, e := range t.Effects {
		switch e {
		case EffectStampPaid:
			if order.PaidAt == nil {
				order.PaidAt = timePtr(now)
			}
		case EffectClearPaid:
			order.PaidAt = nil
		case EffectStampDelivered:
			if order.DeliveredAt == nil {
				order.DeliveredAt = timePtr(now)
			}
		case EffectClearDelivered:
			order.DeliveredAt = nil
		}
	}
	order.UpdatedAt = now
}

// 返金可否
func CheckRefund(order model.Order) error {
	if !order.Status.IsCancelled() {
		return ruleErr("Only cancelled orders are eligible for refund")
	}
	if order.PaidAt == nil {
		return ruleErr("Cannot refund unpaid order")
	}
	if order.RefundedAt != nil {
		return ruleErr("Order has already been refunded")
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
