package middleware

import (
	"net/http"
	"strings"

	"bookstore/internal/domain/model"
	"bookstore/internal/infra/auth"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey        = "user_id"         // int64
	CtxUserRoleKey      = "user_role"       // string
	CtxPickupPointIDKey = "pickup_point_id" // *int64
	CtxTokenVersionKey  = "token_version"   // int
)

// TokenParser はアクセストークンの検証
type TokenParser interface {
	Parse(raw string) (auth.Claims, error)
}

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(p TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims, err := p.Parse(rawToken)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUserRoleKey, string(claims.Role))
			c.Set(CtxPickupPointIDKey, claims.PickupPointID)
			c.Set(CtxTokenVersionKey, claims.TokenVersion)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// CurrentUserID はAuthJWTが入れたuser_idを返す
func CurrentUserID(c echo.Context) (int64, bool) {
	v, ok := c.Get(CtxUserIDKey).(int64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// CurrentStaff はスタッフ操作の実行者を組み立てる
func CurrentStaff(c echo.Context) (model.StaffIdentity, bool) {
	userID, ok := CurrentUserID(c)
	if !ok {
		return model.StaffIdentity{}, false
	}
	role, _ := c.Get(CtxUserRoleKey).(string)
	pp, _ := c.Get(CtxPickupPointIDKey).(*int64)
	return model.StaffIdentity{UserID: userID, Role: model.Role(role), PickupPointID: pp}, true
}
