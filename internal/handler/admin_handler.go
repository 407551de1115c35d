package handler

import (
	"net/http"
	"strconv"
	"time"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin 配下（おすすめ出品者、強制ログアウト、監査ログ）
type AdminHandler struct {
	sellers *usecase.SellerUsecase
	admin   *usecase.AdminUsecase
}

func NewAdminHandler(sellers *usecase.SellerUsecase, admin *usecase.AdminUsecase) *AdminHandler {
	return &AdminHandler{sellers: sellers, admin: admin}
}

type RecommendationRequest struct {
	Recommended *bool `json:"recommended"`
}

// g は ADMIN 限定グループ
func (h *AdminHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/sellers", h.listSellers)
	g.PATCH("/sellers/:id/recommendation", h.setRecommendation)
	g.POST("/users/:id/force-logout", h.forceLogout)
	g.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandler) listSellers(c echo.Context) error {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
	}
	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.sellers.AdminListSellers(c.Request().Context(), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) setRecommendation(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req RecommendationRequest
	if err := c.Bind(&req); err != nil || req.Recommended == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "recommended required"})
	}

	if err := h.sellers.AdminSetRecommended(c.Request().Context(), adminID, c.Param("id"), *req.Recommended); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminHandler) forceLogout(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.admin.ForceLogout(c.Request().Context(), adminID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ?actor_user_id=&action=&resource_type=&resource_id=&from=&to=&limit=&offset=
func (h *AdminHandler) listAuditLogs(c echo.Context) error {
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
	}
	from, err := timeQuery(c, "from")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	logs, err := h.admin.ListAuditLogs(c.Request().Context(), usecase.AuditLogQuery{
		ActorUserID:  c.QueryParam("actor_user_id"),
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   c.QueryParam("resource_id"),
		From:         from,
		To:           to,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": logs})
}

func intQuery(c echo.Context, key string, def int) (int, error) {
	v := c.QueryParam(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// RFC3339
func timeQuery(c echo.Context, key string) (*time.Time, error) {
	v := c.QueryParam(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
