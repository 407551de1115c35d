package middleware

import (
	"marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

// TokenVersionGuard はAuthJWTの後ろに置く。
// 停止ユーザーと、tvがDBのtoken_versionとずれたトークン（ログアウト・強制ログアウト済み）を401にする。
func TokenVersionGuard(users repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return unauthorized(c)
			}

			user, err := users.FindByID(c.Request().Context(), p.UserID)
			switch {
			case err != nil, user == nil, !user.IsActive:
				return unauthorized(c)
			case user.TokenVersion != p.TokenVersion:
				return unauthorized(c)
			}

			//ロールはDBの値を正とする（降格はすぐ効く）
			p.Role = user.Role
			setPrincipal(c, p)
			return next(c)
		}
	}
}
