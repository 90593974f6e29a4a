package handler

import (
	"net/http"
	"strconv"

	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者・拠点スタッフ用
type StaffOrderHandler struct {
	uc    *usecase.StaffOrderUsecase
	query *usecase.OrderQueryUsecase
}

func NewStaffOrderHandler(uc *usecase.StaffOrderUsecase, query *usecase.OrderQueryUsecase) *StaffOrderHandler {
	return &StaffOrderHandler{uc: uc, query: query}
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *StaffOrderHandler) RegisterRoutes(e *echo.Echo, tokens middleware.TokenParser, userRepo repository.UserRepository) {
	staff := e.Group("/staff")
	staff.Use(middleware.AuthJWT(tokens))
	staff.Use(middleware.TokenVersionGuard(userRepo))
	staff.Use(middleware.StaffGuard())

	staff.GET("/orders", h.list)
	staff.GET("/orders/:id", h.detail)
	staff.GET("/orders/:id/audit-logs", h.auditLogs)
	staff.PATCH("/orders/:id/status", h.updateStatus)
	staff.PATCH("/order-items/:id/status", h.updateItemStatus)
}

func (h *StaffOrderHandler) list(c echo.Context) error {
	actor, ok := middleware.CurrentStaff(c)
	if !ok {
		return unauthorized(c)
	}

	page, size, err := parsePaging(c, 20)
	if err != nil {
		return badRequest(c, err.Error())
	}

	in := usecase.StaffOrderListInput{
		Page:          page,
		Size:          size,
		Email:         c.QueryParam("email"),
		Status:        c.QueryParam("status"),
		SortDirection: c.QueryParam("sort_direction"),
	}

	if v := c.QueryParam("order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid order_id")
		}
		in.OrderID = &id
	}

	if v := c.QueryParam("pickup_point_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid pickup_point_id")
		}
		in.PickupPointID = &id
	}

	out, err := h.query.ListStaffOrders(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *StaffOrderHandler) detail(c echo.Context) error {
	actor, ok := middleware.CurrentStaff(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.query.GetStaffOrderDetail(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *StaffOrderHandler) auditLogs(c echo.Context) error {
	actor, ok := middleware.CurrentStaff(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.query.ListOrderAuditLogs(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *StaffOrderHandler) updateStatus(c echo.Context) error {
	// 操作したスタッフ（監査ログ用）
	actor, ok := middleware.CurrentStaff(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req StatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.UpdateOrderStatus(c.Request().Context(), actor, orderID, req.Status)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *StaffOrderHandler) updateItemStatus(c echo.Context) error {
	actor, ok := middleware.CurrentStaff(c)
	if !ok {
		return unauthorized(c)
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req StatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.UpdateOrderItemStatus(c.Request().Context(), actor, itemID, req.Status)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
