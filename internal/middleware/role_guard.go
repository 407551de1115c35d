package middleware

import (
	"slices"

	"marketplace/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// RoleGuard は許可ロール以外を403にする。
func RoleGuard(allowed ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || p.Role == "" {
				return unauthorized(c)
			}
			if !slices.Contains(allowed, p.Role) {
				return forbidden(c)
			}
			return next(c)
		}
	}
}
