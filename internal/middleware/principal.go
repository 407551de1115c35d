package middleware

import (
	"net/http"

	"marketplace/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// Principal はトークンから読んだログイン中のユーザー。
// Role は TokenVersionGuard を通るとDBの値に置き換わる。
type Principal struct {
	UserID       string
	Role         model.Role
	TokenVersion int
}

const principalKey = "principal"

func PrincipalFrom(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}

func setPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

type errorResponse struct {
	Error string `json:"error"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
}
