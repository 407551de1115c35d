package middleware

import (
	"net/http"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/infra/identity"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// アクセストークンの中身（cmd/apiのjwtIssuerと対）
type accessClaims struct {
	Role string `json:"role"`
	TV   *int   `json:"tv"`
	jwt.RegisteredClaims
}

// AuthJWT は Authorization: Bearer <token> を検証して Principal を置く。
// 署名はHS256のみ。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return unauthorized(c)
			}

			var claims accessClaims
			token, err := parser.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !token.Valid {
				return unauthorized(c)
			}

			p, ok := claims.principal()
			if !ok {
				return unauthorized(c)
			}

			setPrincipal(c, p)
			//usecaseはrequestのcontextから読む
			c.SetRequest(c.Request().WithContext(identity.WithUserID(c.Request().Context(), p.UserID)))
			return next(c)
		}
	}
}

// sub/role/tv が揃っているか
func (cl accessClaims) principal() (Principal, bool) {
	sub := strings.TrimSpace(cl.Subject)
	if sub == "" || cl.Role == "" || cl.TV == nil || *cl.TV < 0 {
		return Principal{}, false
	}
	return Principal{UserID: sub, Role: model.Role(cl.Role), TokenVersion: *cl.TV}, true
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
