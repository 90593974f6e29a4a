package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// OrderQueryUsecase は注文の参照系（更新はしない）
type OrderQueryUsecase struct {
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	books        repo.BookRepository
	pickupPoints repo.PickupPointRepository
	users        repo.UserRepository
	auditLogs    repo.AuditLogRepository
}

func NewOrderQueryUsecase(
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	books repo.BookRepository,
	pickupPoints repo.PickupPointRepository,
	users repo.UserRepository,
	auditLogs repo.AuditLogRepository,
) *OrderQueryUsecase {
	return &OrderQueryUsecase{
		orders:       orders,
		orderItems:   orderItems,
		books:        books,
		pickupPoints: pickupPoints,
		users:        users,
		auditLogs:    auditLogs,
	}
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

type PickupPointView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	WorkingHours string `json:"working_hours"`
}

type OrderSummary struct {
	ID          int64             `json:"id"`
	Status      model.OrderStatus `json:"status"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	CreatedAt   time.Time         `json:"created_at"`
	PaidAt      *time.Time        `json:"paid_at"`
	DeliveredAt *time.Time        `json:"delivered_at"`
	RefundedAt  *time.Time        `json:"refunded_at"`
	PickupPoint *PickupPointView  `json:"pickup_point"`
	ItemCount   int64             `json:"item_count"`
}

type StaffOrderSummary struct {
	OrderSummary
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

type OrderItemDetail struct {
	OrderItemID   int64            `json:"order_item_id"`
	BookID        int64            `json:"book_id"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	ImageURL      string           `json:"image_url"`
	Type          model.ItemType   `json:"type"`
	RentalDays    *int             `json:"rental_days,omitempty"`
	RentalStartAt *time.Time       `json:"rental_start_at,omitempty"`
	RentalEndAt   *time.Time       `json:"rental_end_at,omitempty"`
	ItemStatus    model.ItemStatus `json:"item_status"`
	Price         decimal.Decimal  `json:"price"`
}

type OrderDetail struct {
	OrderSummary
	UserID int64             `json:"user_id"`
	Items  []OrderItemDetail `json:"items"`
}

type RentalView struct {
	OrderItemID   int64            `json:"order_item_id"`
	OrderID       int64            `json:"order_id"`
	BookID        int64            `json:"book_id"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	ImageURL      string           `json:"image_url"`
	RentalDays    *int             `json:"rental_days,omitempty"`
	RentalStartAt *time.Time       `json:"rental_start_at,omitempty"`
	RentalEndAt   *time.Time       `json:"rental_end_at,omitempty"`
	ItemStatus    model.ItemStatus `json:"item_status"`
}

type Alerts struct {
	HasReadyForPickup bool `json:"has_ready_for_pickup"`
	HasOverdueRentals bool `json:"has_overdue_rentals"`
}

type StaffOrderListInput struct {
	Page          int
	Size          int
	OrderID       *int64
	Email         string
	Status        string
	PickupPointID *int64
	SortDirection string
}

func validatePage(page, size int) error {
	if page < 1 {
		return validationError("invalid page")
	}
	if size < 1 || size > 100 {
		return validationError("invalid size")
	}
	return nil
}

// ListMyOrders は自分の注文一覧（新しい順）
func (u *OrderQueryUsecase) ListMyOrders(ctx context.Context, userID int64, page int, size int) (Page[OrderSummary], error) {
	if userID <= 0 {
		return Page[OrderSummary]{}, newError(KindUnauthorized, "unauthorized")
	}
	if err := validatePage(page, size); err != nil {
		return Page[OrderSummary]{}, err
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, size)
	if err != nil {
		return Page[OrderSummary]{}, internalError(err)
	}

	summaries, err := u.summarize(ctx, orders)
	if err != nil {
		return Page[OrderSummary]{}, err
	}
	return Page[OrderSummary]{Items: summaries, Total: total, Page: page, Size: size}, nil
}

// GetMyOrderDetail は自分の注文だけ見られる
func (u *OrderQueryUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderDetail, error) {
	if userID <= 0 {
		return OrderDetail{}, newError(KindUnauthorized, "unauthorized")
	}

	order, err := u.findOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if order.UserID != userID {
		return OrderDetail{}, forbidden("Access denied to order: %d", orderID)
	}
	return u.detail(ctx, order)
}

// GetStaffOrderDetail は拠点スコープ付きで注文詳細を返す
func (u *OrderQueryUsecase) GetStaffOrderDetail(ctx context.Context, actor model.StaffIdentity, orderID int64) (OrderDetail, error) {
	order, err := u.findOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if err := checkStaffAccess(actor, order); err != nil {
		return OrderDetail{}, err
	}
	return u.detail(ctx, order)
}

// ListStaffOrders はスタッフ用一覧。WORKERは担当拠点で強制的に絞る
func (u *OrderQueryUsecase) ListStaffOrders(ctx context.Context, actor model.StaffIdentity, in StaffOrderListInput) (Page[StaffOrderSummary], error) {
	if err := validatePage(in.Page, in.Size); err != nil {
		return Page[StaffOrderSummary]{}, err
	}
	if in.Status != "" {
		if _, ok := model.ParseOrderStatus(in.Status); !ok {
			return Page[StaffOrderSummary]{}, validationError("invalid status")
		}
	}
	dir := strings.ToLower(strings.TrimSpace(in.SortDirection))
	if dir != "" && dir != "asc" && dir != "desc" {
		return Page[StaffOrderSummary]{}, validationError("invalid sort_direction")
	}

	f := repo.StaffOrderListFilter{
		Page:          in.Page,
		Limit:         in.Size,
		OrderID:       in.OrderID,
		Email:         in.Email,
		Status:        in.Status,
		PickupPointID: in.PickupPointID,
		SortDirection: dir,
	}

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleWorker:
		if actor.PickupPointID == nil {
			return Page[StaffOrderSummary]{}, orderError("Worker must be assigned to a pickup point")
		}
		f.PickupPointID = actor.PickupPointID
	default:
		return Page[StaffOrderSummary]{}, forbidden("staff only")
	}

	orders, total, err := u.orders.ListStaff(ctx, f)
	if err != nil {
		return Page[StaffOrderSummary]{}, internalError(err)
	}

	summaries, err := u.summarize(ctx, orders)
	if err != nil {
		return Page[StaffOrderSummary]{}, err
	}

	users, err := u.users.FindByIDs(ctx, lo.Uniq(lo.Map(orders, func(o model.Order, _ int) int64 { return o.UserID })))
	if err != nil {
		return Page[StaffOrderSummary]{}, internalError(err)
	}

	items := make([]StaffOrderSummary, 0, len(orders))
	for i, o := range orders {
		items = append(items, StaffOrderSummary{
			OrderSummary: summaries[i],
			UserID:       o.UserID,
			Email:        users[o.UserID].Email,
		})
	}
	return Page[StaffOrderSummary]{Items: items, Total: total, Page: in.Page, Size: in.Size}, nil
}

// ListOrderAuditLogs は注文に対するスタッフ操作の履歴
func (u *OrderQueryUsecase) ListOrderAuditLogs(ctx context.Context, actor model.StaffIdentity, orderID int64) ([]model.AuditLog, error) {
	order, err := u.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkStaffAccess(actor, order); err != nil {
		return nil, err
	}

	logs, err := u.auditLogs.ListForOrder(ctx, orderID, 200)
	if err != nil {
		return nil, internalError(err)
	}
	return logs, nil
}

// ListMyRentals は自分のレンタル明細（新しい順）
func (u *OrderQueryUsecase) ListMyRentals(ctx context.Context, userID int64, page int, size int) (Page[RentalView], error) {
	if userID <= 0 {
		return Page[RentalView]{}, newError(KindUnauthorized, "unauthorized")
	}
	if err := validatePage(page, size); err != nil {
		return Page[RentalView]{}, err
	}

	items, total, err := u.orderItems.ListRentalsByUserID(ctx, userID, page, size)
	if err != nil {
		return Page[RentalView]{}, internalError(err)
	}
	books, err := u.books.FindByIDs(ctx, lo.Uniq(lo.Map(items, func(it model.OrderItem, _ int) int64 { return it.BookID })))
	if err != nil {
		return Page[RentalView]{}, internalError(err)
	}

	views := lo.Map(items, func(it model.OrderItem, _ int) RentalView {
		b := books[it.BookID]
		return RentalView{
			OrderItemID:   it.ID,
			OrderID:       it.OrderID,
			BookID:        it.BookID,
			Title:         b.Title,
			Author:        b.AuthorName,
			ImageURL:      b.ImageURL,
			RentalDays:    it.RentalDays,
			RentalStartAt: it.RentalStartAt,
			RentalEndAt:   it.RentalEndAt,
			ItemStatus:    it.ItemStatus,
		}
	})
	return Page[RentalView]{Items: views, Total: total, Page: page, Size: size}, nil
}

// GetAlerts は受け取り待ち・延滞があるかどうか
func (u *OrderQueryUsecase) GetAlerts(ctx context.Context, userID int64) (Alerts, error) {
	if userID <= 0 {
		return Alerts{}, newError(KindUnauthorized, "unauthorized")
	}

	ready, err := u.orders.CountByUserAndStatuses(ctx, userID, []model.OrderStatus{
		model.OrderStatusReadyForPickup,
		model.OrderStatusReadyForPickupUnpaid,
	})
	if err != nil {
		return Alerts{}, internalError(err)
	}
	overdue, err := u.orderItems.CountOverdueByUserID(ctx, userID)
	if err != nil {
		return Alerts{}, internalError(err)
	}
	return Alerts{HasReadyForPickup: ready > 0, HasOverdueRentals: overdue > 0}, nil
}

func (u *OrderQueryUsecase) findOrder(ctx context.Context, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, validationError("invalid id")
	}
	order, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFound("Order not found: %d", orderID)
	}
	if err != nil {
		return model.Order{}, internalError(err)
	}
	return order, nil
}

// 拠点と明細数をまとめて引く
func (u *OrderQueryUsecase) summarize(ctx context.Context, orders []model.Order) ([]OrderSummary, error) {
	orderIDs := lo.Map(orders, func(o model.Order, _ int) int64 { return o.ID })
	counts, err := u.orderItems.CountByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, internalError(err)
	}
	points, err := u.pickupPoints.FindByIDs(ctx, lo.Uniq(lo.Map(orders, func(o model.Order, _ int) int64 { return o.PickupPointID })))
	if err != nil {
		return nil, internalError(err)
	}

	return lo.Map(orders, func(o model.Order, _ int) OrderSummary {
		s := toSummary(o, nil)
		if p, ok := points[o.PickupPointID]; ok {
			s.PickupPoint = toPickupPointView(p)
		}
		s.ItemCount = counts[o.ID]
		return s
	}), nil
}

func (u *OrderQueryUsecase) detail(ctx context.Context, order model.Order) (OrderDetail, error) {
	pp, err := u.pickupPoints.FindByID(ctx, order.PickupPointID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderDetail{}, notFound("Pickup point not found")
	}
	if err != nil {
		return OrderDetail{}, internalError(err)
	}

	items, err := u.orderItems.ListByOrderID(ctx, order.ID)
	if err != nil {
		return OrderDetail{}, internalError(err)
	}
	books, err := u.books.FindByIDs(ctx, lo.Uniq(lo.Map(items, func(it model.OrderItem, _ int) int64 { return it.BookID })))
	if err != nil {
		return OrderDetail{}, internalError(err)
	}

	s := toSummary(order, toPickupPointView(pp))
	s.ItemCount = int64(len(items))

	return OrderDetail{
		OrderSummary: s,
		UserID:       order.UserID,
		Items: lo.Map(items, func(it model.OrderItem, _ int) OrderItemDetail {
			b := books[it.BookID]
			return OrderItemDetail{
				OrderItemID:   it.ID,
				BookID:        it.BookID,
				Title:         b.Title,
				Author:        b.AuthorName,
				ImageURL:      b.ImageURL,
				Type:          it.Type,
				RentalDays:    it.RentalDays,
				RentalStartAt: it.RentalStartAt,
				RentalEndAt:   it.RentalEndAt,
				ItemStatus:    it.ItemStatus,
				Price:         it.Price,
			}
		}),
	}, nil
}

func toSummary(o model.Order, pp *PickupPointView) OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		Status:      o.Status,
		TotalPrice:  o.TotalPrice,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		DeliveredAt: o.DeliveredAt,
		RefundedAt:  o.RefundedAt,
		PickupPoint: pp,
	}
}

func toPickupPointView(p model.PickupPoint) *PickupPointView {
	return &PickupPointView{
		ID:           p.ID,
		Name:         p.Name,
		Address:      p.Address,
		WorkingHours: p.WorkingHours,
	}
}
