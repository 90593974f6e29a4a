package orderflow

import (
	"time"

	"bookstore/internal/domain/model"
)

// 明細の変更結果。Releaseなら在庫を1つ戻す
type ItemChange struct {
	Item    model.OrderItem
	Changed bool
	Release bool
}

// 延滞扱いになるまでの猶予（日）
const rentalGraceDays = 1

// ApplyItems は注文遷移の副作用を明細に反映する（Effectsの順に適用）。
func ApplyItems(items []model.OrderItem, t Transition, now time.Time) []ItemChange {
	changes := make([]ItemChange, len(items))
	for i, it := range items {
		changes[i] = ItemChange{Item: it}
	}

	for _, e := range t.Effects {
		for i := range changes {
			c := &changes[i]
			switch e {
			case EffectResetItems:
				apply(c, resetItem(c.Item))
			case EffectDeliverItems:
				apply(c, deliverItem(c.Item, now))
			case EffectCancelItems:
				apply(c, cancelItem(c.Item))
			case EffectReturnItems:
				apply(c, returnItem(c.Item, now))
			}
		}
	}
	return changes
}

func apply(c *ItemChange, next ItemChange) {
	if !next.Changed {
		return
	}
	c.Item = next.Item
	c.Changed = true
	c.Release = c.Release || next.Release
}

// 受け渡し: BUYはDELIVERED、RENTはRENTED（期間 = 日数 + 猶予1日）
func deliverItem(it model.OrderItem, now time.Time) ItemChange {
	if it.ItemStatus != model.ItemStatusPending {
		return ItemChange{Item: it}
	}
	if it.Type == model.ItemTypeRent {
		return ItemChange{Item: startRental(it, now), Changed: true}
	}
	it.ItemStatus = model.ItemStatusDelivered
	return ItemChange{Item: it, Changed: true}
}

func startRental(it model.OrderItem, now time.Time) model.OrderItem {
	days := 0
	if it.RentalDays != nil {
		days = *it.RentalDays
	}
	it.ItemStatus = model.ItemStatusRented
	it.RentalStartAt = timePtr(now)
	it.RentalEndAt = timePtr(now.AddDate(0, 0, days+rentalGraceDays))
	return it
}

// 受け渡しの取り消し。返却済み・キャンセル済みはそのまま
func resetItem(it model.OrderItem) ItemChange {
	switch it.ItemStatus {
	case model.ItemStatusDelivered, model.ItemStatusRented, model.ItemStatusOverdue:
		it.ItemStatus = model.ItemStatusPending
		it.RentalStartAt = nil
		it.RentalEndAt = nil
		return ItemChange{Item: it, Changed: true}
	}
	return ItemChange{Item: it}
}

// PENDINGだけが在庫を押さえている
func cancelItem(it model.OrderItem) ItemChange {
	if it.ItemStatus.IsFinal() {
		return ItemChange{Item: it}
	}
	release := it.ItemStatus == model.ItemStatusPending
	it.ItemStatus = model.ItemStatusCancelled
	return ItemChange{Item: it, Changed: true, Release: release}
}

func returnItem(it model.OrderItem, now time.Time) ItemChange {
	if it.Type != model.ItemTypeRent {
		return ItemChange{Item: it}
	}
	if it.ItemStatus != model.ItemStatusRented && it.ItemStatus != model.ItemStatusOverdue {
		return ItemChange{Item: it}
	}
	it.ItemStatus = model.ItemStatusReturned
	it.RentalEndAt = timePtr(now)
	return ItemChange{Item: it, Changed: true, Release: true}
}

// スタッフが明細単位で設定できる遷移
var itemEdges = map[model.ItemStatus][]model.ItemStatus{
	model.ItemStatusPending:   {model.ItemStatusDelivered, model.ItemStatusRented, model.ItemStatusCancelled},
	model.ItemStatusDelivered: {model.ItemStatusPending, model.ItemStatusCancelled},
	model.ItemStatusRented:    {model.ItemStatusPending, model.ItemStatusOverdue, model.ItemStatusReturned, model.ItemStatusCancelled},
	model.ItemStatusOverdue:   {model.ItemStatusReturned, model.ItemStatusCancelled},
}

// PlanItem は明細単体のステータス変更を判定して結果を返す。
func PlanItem(order model.Order, it model.OrderItem, to model.ItemStatus, now time.Time) (ItemChange, error) {
	if order.Status.IsCancelled() {
		return ItemChange{}, ruleErr("Cannot change status of items in cancelled order")
	}
	if it.ItemStatus == to {
		return ItemChange{Item: it}, nil
	}

	switch to {
	case model.ItemStatusReturned:
		if it.Type != model.ItemTypeRent {
			return ItemChange{}, ruleErr("RETURNED status is only applicable to rented items")
		}
		if it.ItemStatus != model.ItemStatusRented && it.ItemStatus != model.ItemStatusOverdue {
			return ItemChange{}, ruleErr("Item must be RENTED or OVERDUE before marking as RETURNED")
		}
	case model.ItemStatusRented, model.ItemStatusOverdue:
		if it.Type != model.ItemTypeRent {
			return ItemChange{}, ruleErr("%s status is only applicable to rented items", to)
		}
	case model.ItemStatusDelivered:
		if it.Type != model.ItemTypeBuy {
			return ItemChange{}, ruleErr("DELIVERED status is only applicable to purchased items")
		}
	}

	if it.ItemStatus.IsFinal() {
		return ItemChange{}, ruleErr("Item is already %s", it.ItemStatus)
	}
	ok := false
	for _, s := range itemEdges[it.ItemStatus] {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		return ItemChange{}, ruleErr("Invalid item status transition: %s -> %s", it.ItemStatus, to)
	}

	switch to {
	case model.ItemStatusReturned:
		return returnItem(it, now), nil
	case model.ItemStatusCancelled:
		return cancelItem(it), nil
	case model.ItemStatusPending:
		return resetItem(it), nil
	case model.ItemStatusRented:
		return ItemChange{Item: startRental(it, now), Changed: true}, nil
	}
	it.ItemStatus = to
	return ItemChange{Item: it, Changed: true}, nil
}

// 返却期限を過ぎたレンタル明細をOVERDUEにする。対象外ならChanged=false
func MarkOverdue(it model.OrderItem, now time.Time) ItemChange {
	if it.Type != model.ItemTypeRent || it.ItemStatus != model.ItemStatusRented {
		return ItemChange{Item: it}
	}
	if it.RentalEndAt == nil || !it.RentalEndAt.Before(now) {
		return ItemChange{Item: it}
	}
	it.ItemStatus = model.ItemStatusOverdue
	return ItemChange{Item: it, Changed: true}
}
