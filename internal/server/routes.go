package server

import (
	"bookstore/internal/handler"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Tokens   middleware.TokenParser
	Users    repository.UserRepository
	Health   *handler.HealthHandler
	Cart     *handler.CartHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	StaffOrd *handler.StaffOrderHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Payment.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, h.Tokens, h.Users)
	h.Order.RegisterRoutes(e, h.Tokens, h.Users)
	h.StaffOrd.RegisterRoutes(e, h.Tokens, h.Users)
}
