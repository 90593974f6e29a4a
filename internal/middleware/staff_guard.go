package middleware

import (
	"net/http"

	"bookstore/internal/domain/model"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがADMINかWORKERかを確認します。

func StaffGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//USERは拒否
			switch model.Role(role) {
			case model.RoleAdmin, model.RoleWorker:
				return next(c)
			}
			return c.JSON(http.StatusForbidden, errorJSON("staff only"))
		}
	}
}
