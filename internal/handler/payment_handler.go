package handler

import (
	"crypto/subtle"
	"net/http"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const HeaderWebhookSecret = "X-Webhook-Secret"

// 決済サービスからの入金通知
type PaymentHandler struct {
	uc     *usecase.OrderUsecase
	secret string
}

func NewPaymentHandler(uc *usecase.OrderUsecase, secret string) *PaymentHandler {
	return &PaymentHandler{uc: uc, secret: secret}
}

type PaymentWebhookRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/webhook", h.webhook)
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	got := c.Request().Header.Get(HeaderWebhookSecret)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		return unauthorized(c)
	}

	var req PaymentWebhookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.ConfirmPayment(c.Request().Context(), req.OrderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
