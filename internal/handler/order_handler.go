package handler

import (
	"net/http"

	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc    *usecase.OrderUsecase
	query *usecase.OrderQueryUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, query *usecase.OrderQueryUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, query: query}
}

type OrderCreateRequest struct {
	PickupPointID int64 `json:"pickup_point_id" validate:"required,gt=0"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, tokens middleware.TokenParser, userRepo repository.UserRepository) {
	mw := []echo.MiddlewareFunc{
		middleware.AuthJWT(tokens),
		middleware.TokenVersionGuard(userRepo),
	}

	g := e.Group("/orders", mw...)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/refund", h.refund)

	e.GET("/rentals", h.rentals, mw...)
	e.GET("/notifications/alerts", h.alerts, mw...)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.CreateOrderFromCart(c.Request().Context(), userID, req.PickupPointID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	page, size, err := parsePaging(c, 10)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.query.ListMyOrders(c.Request().Context(), userID, page, size)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.query.GetMyOrderDetail(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.CancelOrderByUser(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) refund(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.ProcessRefund(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) rentals(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	page, size, err := parsePaging(c, 10)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.query.ListMyRentals(c.Request().Context(), userID, page, size)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) alerts(c echo.Context) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.query.GetAlerts(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
