package handler

import (
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /cartのHTTP
type CartHandler struct {
	uc       *usecase.CartUsecase
	checkout *usecase.CheckoutUsecase
	money    usecase.MoneyFormat
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, checkout *usecase.CheckoutUsecase, money usecase.MoneyFormat) *CartHandler {
	return &CartHandler{uc: uc, checkout: checkout, money: money}
}

type AddCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Delta int64 `json:"delta"`
}

type CartItemView struct {
	usecase.SnapshotItem
	FormattedUnitPrice string `json:"formatted_unit_price"`
	FormattedLineTotal string `json:"formatted_line_total"`
}

type CartView struct {
	State             string              `json:"state"`
	Items             []CartItemView      `json:"items"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	FormattedSubtotal string              `json:"formatted_subtotal"`
	Seller            *usecase.SellerInfo `json:"seller"`
}

type CartResponse struct {
	Cart    CartView `json:"cart"`
	Notices []Notice `json:"notices"`
}

type AddCartResponse struct {
	Result  usecase.AddResult `json:"result"`
	Cart    CartView          `json:"cart"`
	Notices []Notice          `json:"notices"`
}

type UpdateCartItemResponse struct {
	Quantity int64    `json:"quantity"`
	Cart     CartView `json:"cart"`
	Notices  []Notice `json:"notices"`
}

type RemoveResponse struct {
	Removed bool     `json:"removed"`
	Cart    CartView `json:"cart"`
	Notices []Notice `json:"notices"`
}

type ConfirmRequiredResponse struct {
	Error    string `json:"error"`
	Question string `json:"question"`
}

type CheckoutResponse struct {
	usecase.CheckoutResult
	OpenURL string   `json:"open_url"`
	Notices []Notice `json:"notices"`
}

// /cart, /cart/{id} を登録（g は認証済みグループ）
func (h *CartHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.DELETE("", h.clearCart)
	g.POST("/checkout", h.checkoutCart)
	g.PATCH("/:id", h.patchItem)
	g.DELETE("/:id", h.deleteItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	ctx, _ := withSession(c.Request().Context(), false)

	snap, err := h.uc.Snapshot(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, CartResponse{Cart: h.view(snap), Notices: noticesOf(ctx)})
}

func (h *CartHandler) addToCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "product_id required"})
	}
	//数量省略は1
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx, _ := withSession(c.Request().Context(), false)
	c.SetRequest(c.Request().WithContext(ctx))

	res, err := h.uc.AddProduct(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}

	snap, err := h.uc.Snapshot(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AddCartResponse{Result: res, Cart: h.view(snap), Notices: noticesOf(ctx)})
}

func (h *CartHandler) patchItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	itemID := c.Param("id")
	if strings.TrimSpace(itemID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Delta == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "delta must not be 0"})
	}

	ctx, _ := withSession(c.Request().Context(), false)
	c.SetRequest(c.Request().WithContext(ctx))

	qty, err := h.uc.UpdateQuantity(ctx, userID, itemID, req.Delta)
	if err != nil {
		return writeError(c, err)
	}

	snap, err := h.uc.Snapshot(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, UpdateCartItemResponse{Quantity: qty, Cart: h.view(snap), Notices: noticesOf(ctx)})
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	itemID := c.Param("id")
	if strings.TrimSpace(itemID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	ctx, s := withSession(c.Request().Context(), confirmed(c))
	c.SetRequest(c.Request().WithContext(ctx))

	removed, err := h.uc.RemoveEntry(ctx, userID, itemID)
	if err != nil {
		return writeError(c, err)
	}
	if !removed && !s.confirmed {
		if q := s.question(); q != "" {
			return c.JSON(http.StatusPreconditionRequired, ConfirmRequiredResponse{Error: "confirmation required", Question: q})
		}
	}

	snap, err := h.uc.Snapshot(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, RemoveResponse{Removed: removed, Cart: h.view(snap), Notices: noticesOf(ctx)})
}

func (h *CartHandler) clearCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	ctx, s := withSession(c.Request().Context(), confirmed(c))
	c.SetRequest(c.Request().WithContext(ctx))

	cleared, err := h.uc.ClearCart(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}
	if !cleared {
		return c.JSON(http.StatusPreconditionRequired, ConfirmRequiredResponse{Error: "confirmation required", Question: s.question()})
	}

	snap, err := h.uc.Snapshot(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, RemoveResponse{Removed: true, Cart: h.view(snap), Notices: noticesOf(ctx)})
}

func (h *CartHandler) checkoutCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	ctx, s := withSession(c.Request().Context(), false)
	c.SetRequest(c.Request().WithContext(ctx))

	res, err := h.checkout.Checkout(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	s.mu.Lock()
	openURL := s.openURL
	s.mu.Unlock()

	return c.JSON(http.StatusOK, CheckoutResponse{CheckoutResult: res, OpenURL: openURL, Notices: noticesOf(ctx)})
}

func (h *CartHandler) view(snap usecase.Snapshot) CartView {
	v := CartView{
		State:             string(snap.State),
		Items:             make([]CartItemView, 0, len(snap.Items)),
		Subtotal:          snap.Subtotal,
		FormattedSubtotal: h.money.Format(snap.Subtotal),
		Seller:            snap.Seller,
	}
	for _, it := range snap.Items {
		v.Items = append(v.Items, CartItemView{
			SnapshotItem:       it,
			FormattedUnitPrice: h.money.Format(it.UnitPrice),
			FormattedLineTotal: h.money.Format(it.LineTotal),
		})
	}
	return v
}

// X-Confirm: true または ?confirm=true
func confirmed(c echo.Context) bool {
	v := c.Request().Header.Get("X-Confirm")
	if v == "" {
		v = c.QueryParam("confirm")
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
