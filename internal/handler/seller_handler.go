package handler

import (
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /seller 配下（出品者の商品とお店情報）
type SellerHandler struct {
	products *usecase.ProductUsecase
	sellers  *usecase.SellerUsecase
}

// DI
func NewSellerHandler(products *usecase.ProductUsecase, sellers *usecase.SellerUsecase) *SellerHandler {
	return &SellerHandler{products: products, sellers: sellers}
}

type SellerProfileRequest struct {
	StoreName    string `json:"store_name"`
	ContactPhone string `json:"contact_phone"`
}

// g は SELLER 限定グループ
func (h *SellerHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/profile", h.getProfile)
	g.PUT("/profile", h.putProfile)

	g.POST("/products", h.createProduct)
	g.PATCH("/products/:id", h.updateProduct)
	g.DELETE("/products/:id", h.deleteProduct)
}

func (h *SellerHandler) getProfile(c echo.Context) error {
	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	p, err := h.sellers.GetProfile(c.Request().Context(), sellerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *SellerHandler) putProfile(c echo.Context) error {
	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req SellerProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	p, err := h.sellers.SaveProfile(c.Request().Context(), sellerID, usecase.SellerProfileInput{
		StoreName:    req.StoreName,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// multipart: name, description, price, stock, is_active, image
func (h *SellerHandler) createProduct(c echo.Context) error {
	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	patch, err := readProductForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	if patch.UnitPrice == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "price required"})
	}

	in := usecase.SellerProductInput{UnitPrice: *patch.UnitPrice}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Description != nil {
		in.Description = *patch.Description
	}
	if patch.Stock != nil {
		in.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		in.IsActive = *patch.IsActive
	}

	img, closeImg, err := readImage(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid image"})
	}
	defer closeImg()

	p, err := h.products.SellerCreateProduct(c.Request().Context(), sellerID, in, img)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *SellerHandler) updateProduct(c echo.Context) error {
	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	patch, err := readProductForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	img, closeImg, err := readImage(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid image"})
	}
	defer closeImg()

	p, err := h.products.SellerUpdateProduct(c.Request().Context(), sellerID, c.Param("id"), patch, img)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *SellerHandler) deleteProduct(c echo.Context) error {
	sellerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.products.SellerDeleteProduct(c.Request().Context(), sellerID, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

type formError string

func (e formError) Error() string { return string(e) }

// 送られてきた項目だけ埋める
func readProductForm(c echo.Context) (usecase.SellerProductPatch, error) {
	var p usecase.SellerProductPatch

	form, err := c.FormParams()
	if err != nil {
		return p, formError("invalid form")
	}
	get := func(key string) (string, bool) {
		vs, ok := form[key]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return strings.TrimSpace(vs[0]), true
	}

	if v, ok := get("name"); ok {
		p.Name = &v
	}
	if v, ok := get("description"); ok {
		p.Description = &v
	}
	if v, ok := get("price"); ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return p, formError("invalid price")
		}
		p.UnitPrice = &d
	}
	if v, ok := get("stock"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, formError("invalid stock")
		}
		p.Stock = &n
	}
	if v, ok := get("is_active"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, formError("invalid is_active")
		}
		p.IsActive = &b
	}
	return p, nil
}

// image が無ければ nil
func readImage(c echo.Context) (*usecase.ImageUpload, func(), error) {
	noop := func() {}

	fh, err := c.FormFile("image")
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}

	return &usecase.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
