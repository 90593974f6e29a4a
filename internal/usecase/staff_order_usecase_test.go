package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bookstore/internal/domain/model"
	"bookstore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaffUC(s *memStore) *usecase.StaffOrderUsecase {
	return usecase.NewStaffOrderUsecase(s, &fixedClock{now: baseTime})
}

func admin() model.StaffIdentity {
	return model.StaffIdentity{UserID: 900, Role: model.RoleAdmin}
}

func worker(pp *int64) model.StaffIdentity {
	return model.StaffIdentity{UserID: 901, Role: model.RoleWorker, PickupPointID: pp}
}

func TestStaffOrderUsecase_UpdateOrderStatus_Access(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	ppA := s.addPickupPoint("A", true)
	ppB := s.addPickupPoint("B", true)
	order, _ := s.addOrder(model.Order{UserID: 1, PickupPointID: ppA.ID, Status: model.OrderStatusPaid, PaidAt: timePtr(baseTime), CreatedAt: baseTime})
	uc := newStaffUC(s)

	_, err := uc.UpdateOrderStatus(ctx, worker(nil), order.ID, "READY_FOR_PICKUP")
	ae := assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Worker must be assigned to a pickup point", ae.Message)

	_, err = uc.UpdateOrderStatus(ctx, worker(int64Ptr(ppB.ID)), order.ID, "READY_FOR_PICKUP")
	ae = assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Access denied: order belongs to different pickup point", ae.Message)

	_, err = uc.UpdateOrderStatus(ctx, model.StaffIdentity{UserID: 1, Role: model.RoleUser}, order.ID, "READY_FOR_PICKUP")
	assertKind(t, err, usecase.KindForbidden)

	assert.Equal(t, model.OrderStatusPaid, s.order(order.ID).Status)
	assert.Empty(t, s.audits())

	out, err := uc.UpdateOrderStatus(ctx, worker(int64Ptr(ppA.ID)), order.ID, "READY_FOR_PICKUP")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReadyForPickup, out.Status)
}

func TestStaffOrderUsecase_UpdateOrderStatus_DeliverWritesAudit(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	b := s.addBook("Go", "10", "0", "1", 0)
	order, items := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusReadyForPickupUnpaid, CreatedAt: baseTime},
		model.OrderItem{BookID: b.ID, Type: model.ItemTypeBuy},
		model.OrderItem{BookID: b.ID, Type: model.ItemTypeRent, RentalDays: intPtr(7)},
	)
	uc := newStaffUC(s)

	out, err := uc.UpdateOrderStatus(ctx, admin(), order.ID, "DELIVERED_AND_PAID")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDeliveredAndPaid, out.Status)
	require.NotNil(t, out.PaidAt)
	require.NotNil(t, out.DeliveredAt)

	assert.Equal(t, model.ItemStatusDelivered, s.item(items[0].ID).ItemStatus)
	rented := s.item(items[1].ID)
	assert.Equal(t, model.ItemStatusRented, rented.ItemStatus)
	require.NotNil(t, rented.RentalEndAt)
	assert.Equal(t, baseTime.AddDate(0, 0, 8), *rented.RentalEndAt)
	// 受け渡しで在庫は動かない
	assert.Equal(t, int64(0), s.stock(b.ID))

	logs := s.audits()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, model.AuditResourceOrder, logs[0].ResourceType)
	assert.Equal(t, order.ID, logs[0].ResourceID)
	assert.Equal(t, model.RoleAdmin, logs[0].ActorRole)

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(logs[0].BeforeJSON), &before))
	require.NoError(t, json.Unmarshal([]byte(logs[0].AfterJSON), &after))
	assert.Equal(t, "READY_FOR_PICKUP_UNPAID", before["status"])
	assert.Nil(t, before["paid_at"])
	assert.Equal(t, "DELIVERED_AND_PAID", after["status"])
	assert.NotNil(t, after["delivered_at"])
}

func TestStaffOrderUsecase_UpdateOrderStatus_NoopAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	order, _ := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusPaid, PaidAt: timePtr(baseTime), CreatedAt: baseTime})
	uc := newStaffUC(s)

	out, err := uc.UpdateOrderStatus(ctx, admin(), order.ID, "PAID")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, out.Status)
	assert.Empty(t, s.audits())

	_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "SHIPPED")
	assertKind(t, err, usecase.KindValidation)

	_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "CANCELLED_BY_USER_PAID")
	ae := assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Status CANCELLED_BY_USER_PAID cannot be set by staff", ae.Message)

	_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "RETURNED")
	ae = assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Order must be delivered before it can be returned", ae.Message)

	// CREATEDに戻すと支払い時刻も消える
	out, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "CREATED")
	require.NoError(t, err)
	assert.Nil(t, out.PaidAt)
}

func TestStaffOrderUsecase_UpdateOrderStatus_CancelReleasesPendingOnly(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	b := s.addBook("Go", "10", "0", "1", 0)
	order, items := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusDelivered, DeliveredAt: timePtr(baseTime), CreatedAt: baseTime},
		model.OrderItem{BookID: b.ID, ItemStatus: model.ItemStatusDelivered},
		model.OrderItem{BookID: b.ID, Type: model.ItemTypeRent, RentalDays: intPtr(3), ItemStatus: model.ItemStatusReturned},
	)
	uc := newStaffUC(s)

	out, err := uc.UpdateOrderStatus(ctx, admin(), order.ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, out.Status)
	assert.Nil(t, out.DeliveredAt)

	// 配達の取り消しでPENDINGに戻ってからキャンセルされるので1冊戻る
	assert.Equal(t, model.ItemStatusCancelled, s.item(items[0].ID).ItemStatus)
	assert.Equal(t, model.ItemStatusReturned, s.item(items[1].ID).ItemStatus)
	assert.Equal(t, int64(1), s.stock(b.ID))

	// キャンセル済みは変更できない
	_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "PAID")
	ae := assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Cannot change status of cancelled order", ae.Message)
}

func TestStaffOrderUsecase_UpdateOrderStatus_ReturnedReleasesRentals(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	b := s.addBook("Go", "10", "0", "1", 0)
	end := baseTime.AddDate(0, 0, 3)
	order, items := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusDeliveredAndPaid, PaidAt: timePtr(baseTime), DeliveredAt: timePtr(baseTime), CreatedAt: baseTime},
		model.OrderItem{BookID: b.ID, ItemStatus: model.ItemStatusDelivered},
		model.OrderItem{BookID: b.ID, Type: model.ItemTypeRent, RentalDays: intPtr(2), ItemStatus: model.ItemStatusRented, RentalEndAt: &end},
		model.OrderItem{BookID: b.ID, Type: model.ItemTypeRent, RentalDays: intPtr(2), ItemStatus: model.ItemStatusOverdue, RentalEndAt: &end},
	)
	uc := newStaffUC(s)

	out, err := uc.UpdateOrderStatus(ctx, admin(), order.ID, "RETURNED")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReturned, out.Status)

	assert.Equal(t, model.ItemStatusDelivered, s.item(items[0].ID).ItemStatus)
	assert.Equal(t, model.ItemStatusReturned, s.item(items[1].ID).ItemStatus)
	assert.Equal(t, model.ItemStatusReturned, s.item(items[2].ID).ItemStatus)
	assert.Equal(t, int64(2), s.stock(b.ID))
	for _, m := range s.movements() {
		assert.Equal(t, model.StockReasonOrderReturn, m.Reason)
	}

	_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "DELIVERED")
	ae := assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Cannot change status of returned order", ae.Message)
}

func TestStaffOrderUsecase_UpdateOrderStatus_AuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	b := s.addBook("Go", "10", "0", "1", 0)
	order, items := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusCreated, CreatedAt: baseTime},
		model.OrderItem{BookID: b.ID})
	s.failAuditWrite = errors.New("insert failed")

	_, err := newStaffUC(s).UpdateOrderStatus(ctx, admin(), order.ID, "CANCELLED")
	assertKind(t, err, usecase.KindInternal)

	assert.Equal(t, model.OrderStatusCreated, s.order(order.ID).Status)
	assert.Equal(t, model.ItemStatusPending, s.item(items[0].ID).ItemStatus)
	assert.Equal(t, int64(0), s.stock(b.ID))
}

func TestStaffOrderUsecase_UpdateOrderItemStatus(t *testing.T) {
	ctx := context.Background()

	setup := func() (*memStore, model.Book, model.Order, []model.OrderItem) {
		s := newMemStore()
		b := s.addBook("Go", "10", "0", "1", 0)
		end := baseTime.AddDate(0, 0, 5)
		order, items := s.addOrder(model.Order{UserID: 1, PickupPointID: 7, Status: model.OrderStatusDelivered, DeliveredAt: timePtr(baseTime), CreatedAt: baseTime},
			model.OrderItem{BookID: b.ID, Type: model.ItemTypeBuy, ItemStatus: model.ItemStatusPending},
			model.OrderItem{BookID: b.ID, Type: model.ItemTypeRent, RentalDays: intPtr(4), ItemStatus: model.ItemStatusRented, RentalStartAt: timePtr(baseTime), RentalEndAt: &end},
		)
		return s, b, order, items
	}

	t.Run("return rental releases stock", func(t *testing.T) {
		s, b, _, items := setup()
		out, err := newStaffUC(s).UpdateOrderItemStatus(ctx, admin(), items[1].ID, "RETURNED")
		require.NoError(t, err)
		assert.Equal(t, model.ItemStatusReturned, out.ItemStatus)
		assert.Equal(t, baseTime, *out.RentalEndAt)
		assert.Equal(t, int64(1), s.stock(b.ID))

		moves := s.movements()
		require.Len(t, moves, 1)
		assert.Equal(t, model.StockReasonRentalReturn, moves[0].Reason)

		logs := s.audits()
		require.Len(t, logs, 1)
		assert.Equal(t, model.AuditActionUpdateOrderItemStatus, logs[0].Action)
		assert.Equal(t, model.AuditResourceOrderItem, logs[0].ResourceType)

		// 返却済みは最終状態
		_, err = newStaffUC(s).UpdateOrderItemStatus(ctx, admin(), items[1].ID, "RENTED")
		ae := assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "Item is already RETURNED", ae.Message)
	})

	t.Run("cancel pending item releases stock", func(t *testing.T) {
		s, b, _, items := setup()
		out, err := newStaffUC(s).UpdateOrderItemStatus(ctx, admin(), items[0].ID, "CANCELLED")
		require.NoError(t, err)
		assert.Equal(t, model.ItemStatusCancelled, out.ItemStatus)
		assert.Equal(t, int64(1), s.stock(b.ID))
		assert.Equal(t, model.StockReasonItemCancel, s.movements()[0].Reason)
	})

	t.Run("type rules", func(t *testing.T) {
		s, _, _, items := setup()
		uc := newStaffUC(s)

		_, err := uc.UpdateOrderItemStatus(ctx, admin(), items[0].ID, "RENTED")
		ae := assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "RENTED status is only applicable to rented items", ae.Message)

		_, err = uc.UpdateOrderItemStatus(ctx, admin(), items[1].ID, "DELIVERED")
		ae = assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "DELIVERED status is only applicable to purchased items", ae.Message)

		_, err = uc.UpdateOrderItemStatus(ctx, admin(), items[0].ID, "RETURNED")
		ae = assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "RETURNED status is only applicable to rented items", ae.Message)

		_, err = uc.UpdateOrderItemStatus(ctx, admin(), items[0].ID, "LOST")
		assertKind(t, err, usecase.KindValidation)

		_, err = uc.UpdateOrderItemStatus(ctx, admin(), 987654, "DELIVERED")
		ae = assertKind(t, err, usecase.KindNotFound)
		assert.Equal(t, "Order item not found", ae.Message)
	})

	t.Run("worker scope and cancelled order", func(t *testing.T) {
		s, _, order, items := setup()
		uc := newStaffUC(s)

		_, err := uc.UpdateOrderItemStatus(ctx, worker(int64Ptr(8)), items[0].ID, "DELIVERED")
		ae := assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "Access denied: order belongs to different pickup point", ae.Message)

		_, err = uc.UpdateOrderStatus(ctx, admin(), order.ID, "CANCELLED")
		require.NoError(t, err)
		_, err = uc.UpdateOrderItemStatus(ctx, worker(int64Ptr(7)), items[0].ID, "DELIVERED")
		ae = assertKind(t, err, usecase.KindOrder)
		assert.Equal(t, "Cannot change status of items in cancelled order", ae.Message)
	})
}

func TestCancellation_ReleasesEachUnitOnce(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	b := s.addBook("Go", "10", "0", "1", 0)
	order, items := s.addOrder(model.Order{UserID: 1, Status: model.OrderStatusCreated, CreatedAt: baseTime},
		model.OrderItem{BookID: b.ID}, model.OrderItem{BookID: b.ID})
	staff := newStaffUC(s)
	users := newOrderUC(s)

	_, err := staff.UpdateOrderItemStatus(ctx, admin(), items[0].ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.stock(b.ID))

	_, err = users.CancelOrderByUser(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.stock(b.ID))

	// 2回目以降のキャンセルは在庫に触れない
	_, err = staff.UpdateOrderStatus(ctx, admin(), order.ID, "CANCELLED")
	ae := assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Cannot change status of cancelled order", ae.Message)

	_, err = users.CancelOrderByUser(ctx, 1, order.ID)
	ae = assertKind(t, err, usecase.KindOrder)
	assert.Equal(t, "Order is already cancelled", ae.Message)

	assert.Equal(t, int64(2), s.stock(b.ID))
	moves := s.movements()
	require.Len(t, moves, 2)
	assert.Equal(t, model.StockReasonItemCancel, moves[0].Reason)
	assert.Equal(t, model.StockReasonUserCancel, moves[1].Reason)
	for _, it := range items {
		assert.Equal(t, model.ItemStatusCancelled, s.item(it.ID).ItemStatus)
	}
}
