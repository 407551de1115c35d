package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/infra/identity"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       string `json:"user_id"`
	CtxUserID    string `json:"ctx_user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) IncrementTokenVersion(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =====================
// helper
// =====================

const (
	testSecret = "test-secret"
	testUserID = "11111111-1111-1111-1111-111111111111"
)

func mustMakeJWT(t *testing.T, secret string, sub any, role string, tv int, method jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}
	token := jwt.NewWithClaims(method, claims)

	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func okHandler(c echo.Context) error {
	ctxID, _ := identity.UserIDFrom(c.Request().Context())
	p, _ := middleware.PrincipalFrom(c)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: p.UserID, CtxUserID: ctxID, Role: string(p.Role), TokenVersion: p.TokenVersion})
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func decodeOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

// =====================
// AuthJWT
// =====================

func newAuthOnly() *echo.Echo {
	e := echo.New()
	e.GET("/protected", okHandler, middleware.AuthJWT(config.Config{JWTSecret: testSecret}))
	return e
}

func TestAuthJWT_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{name: "no header", header: func(t *testing.T) string { return "" }},
		{name: "not bearer", header: func(t *testing.T) string {
			return "Basic " + mustMakeJWT(t, testSecret, testUserID, "BUYER", 0, jwt.SigningMethodHS256)
		}},
		{name: "empty token", header: func(t *testing.T) string { return "Bearer   " }},
		{name: "wrong secret", header: func(t *testing.T) string {
			return "Bearer " + mustMakeJWT(t, "other", testUserID, "BUYER", 0, jwt.SigningMethodHS256)
		}},
		{name: "other hmac method", header: func(t *testing.T) string {
			return "Bearer " + mustMakeJWT(t, testSecret, testUserID, "BUYER", 0, jwt.SigningMethodHS512)
		}},
		{name: "numeric sub", header: func(t *testing.T) string {
			return "Bearer " + mustMakeJWT(t, testSecret, 42, "BUYER", 0, jwt.SigningMethodHS256)
		}},
		{name: "no role", header: func(t *testing.T) string {
			return "Bearer " + mustMakeJWT(t, testSecret, testUserID, "", 0, jwt.SigningMethodHS256)
		}},
		{name: "negative tv", header: func(t *testing.T) string {
			return "Bearer " + mustMakeJWT(t, testSecret, testUserID, "BUYER", -1, jwt.SigningMethodHS256)
		}},
		{name: "missing tv", header: func(t *testing.T) string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": testUserID, "role": "BUYER", "exp": 9999999999})
			s, err := tok.SignedString([]byte(testSecret))
			require.NoError(t, err)
			return "Bearer " + s
		}},
		{name: "expired", header: func(t *testing.T) string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": testUserID, "role": "BUYER", "tv": 0, "exp": 1})
			s, err := tok.SignedString([]byte(testSecret))
			require.NoError(t, err)
			return "Bearer " + s
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequest(t, newAuthOnly(), tc.header(t))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
		})
	}
}

func TestAuthJWT_SetsContext(t *testing.T) {
	tok := mustMakeJWT(t, testSecret, testUserID, "SELLER", 3, jwt.SigningMethodHS256)

	rec := runRequest(t, newAuthOnly(), "bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeOK(t, rec)
	assert.Equal(t, testUserID, body.UserID)
	assert.Equal(t, testUserID, body.CtxUserID)
	assert.Equal(t, "SELLER", body.Role)
	assert.Equal(t, 3, body.TokenVersion)
}

// =====================
// TokenVersionGuard / RoleGuard
// =====================

func newGuarded(repo repository.UserRepository, allowed ...model.Role) *echo.Echo {
	e := echo.New()
	mws := []echo.MiddlewareFunc{
		middleware.AuthJWT(config.Config{JWTSecret: testSecret}),
		middleware.TokenVersionGuard(repo),
	}
	if len(allowed) > 0 {
		mws = append(mws, middleware.RoleGuard(allowed...))
	}
	e.GET("/protected", okHandler, mws...)
	return e
}

func TestTokenVersionGuard(t *testing.T) {
	cases := []struct {
		name string
		user *model.User
		tv   int
		want int
	}{
		{name: "match", user: &model.User{ID: testUserID, Role: model.RoleBuyer, TokenVersion: 2, IsActive: true}, tv: 2, want: http.StatusOK},
		{name: "stale token", user: &model.User{ID: testUserID, Role: model.RoleBuyer, TokenVersion: 3, IsActive: true}, tv: 2, want: http.StatusUnauthorized},
		{name: "inactive", user: &model.User{ID: testUserID, Role: model.RoleBuyer, TokenVersion: 2}, tv: 2, want: http.StatusUnauthorized},
		{name: "deleted user", user: nil, tv: 0, want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &MockUserRepo{}
			repo.On("FindByID", mock.Anything, testUserID).Return(tc.user, nil).Once()

			tok := mustMakeJWT(t, testSecret, testUserID, "BUYER", tc.tv, jwt.SigningMethodHS256)
			rec := runRequest(t, newGuarded(repo), "Bearer "+tok)

			assert.Equal(t, tc.want, rec.Code)
			repo.AssertExpectations(t)
		})
	}
}

// roleはDBの値で判定する
func TestRoleGuard_UsesDatabaseRole(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, testUserID).
		Return(&model.User{ID: testUserID, Role: model.RoleBuyer, IsActive: true}, nil)

	tok := mustMakeJWT(t, testSecret, testUserID, "ADMIN", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, newGuarded(repo, model.RoleAdmin), "Bearer "+tok)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Error)
}

func TestRoleGuard_AllowsListedRoles(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, testUserID).
		Return(&model.User{ID: testUserID, Role: model.RoleSeller, IsActive: true}, nil)

	tok := mustMakeJWT(t, testSecret, testUserID, "SELLER", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, newGuarded(repo, model.RoleSeller, model.RoleAdmin), "Bearer "+tok)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELLER", decodeOK(t, rec).Role)
}

func TestRoleGuard_NoRoleInContext(t *testing.T) {
	e := echo.New()
	e.GET("/protected", okHandler, middleware.RoleGuard(model.RoleAdmin))

	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
