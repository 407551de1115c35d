package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/memstore"
	"marketplace/internal/logger"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productFixture struct {
	store  *memstore.Store
	images *memstore.Images
	uc     *usecase.ProductUsecase
}

func newProductFixture(t *testing.T, withImages bool) *productFixture {
	t.Helper()

	st := memstore.New()
	st.PutSeller(model.SellerProfile{SellerID: sellerAID, StoreName: "Toko Satu", ContactPhone: "0812345678"})

	f := &productFixture{store: st}
	var images repo.ImageStorage
	if withImages {
		f.images = memstore.NewImages()
		images = f.images
	}
	f.uc = usecase.NewProductUsecase(st.Products(), st.Sellers(), st.Audits(), images, uuidGen{}, newStepClock(), logger.Discard())
	return f
}

func pngUpload(body string) *usecase.ImageUpload {
	return &usecase.ImageUpload{
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func validInput() usecase.SellerProductInput {
	return usecase.SellerProductInput{
		Name:      "Kopi Gayo",
		UnitPrice: decimal.NewFromInt(45000),
		Stock:     12,
		IsActive:  true,
	}
}

func auditsOf(t *testing.T, st *memstore.Store, action model.AuditAction) []model.AuditLog {
	t.Helper()
	logs, err := st.Audits().List(context.Background(), repo.AuditLogFilter{Action: &action})
	require.NoError(t, err)
	return logs
}

func TestProduct_SellerCreate_WithImage(t *testing.T) {
	f := newProductFixture(t, true)

	p, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), pngUpload("fake-png"))
	require.NoError(t, err)

	assert.Equal(t, sellerAID, p.SellerID)
	assert.True(t, strings.HasPrefix(p.ImageObject, "products/"+sellerAID+"/"))
	assert.True(t, strings.HasSuffix(p.ImageObject, ".png"))
	assert.Equal(t, "https://images.test/"+p.ImageObject, p.ImageURL)
	assert.True(t, f.images.Has(p.ImageObject))
	assert.Equal(t, "image/png", f.images.ContentType(p.ImageObject))

	logs := auditsOf(t, f.store, model.AuditActionCreateProduct)
	require.Len(t, logs, 1)
	assert.Equal(t, sellerAID, logs[0].ActorUserID)
	assert.Equal(t, p.ID, logs[0].ResourceID)
	assert.Empty(t, logs[0].BeforeJSON)

	var after map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0].AfterJSON), &after))
	assert.Equal(t, "Kopi Gayo", after["name"])
}

func TestProduct_SellerCreate_Rejections(t *testing.T) {
	t.Run("store profile required", func(t *testing.T) {
		f := newProductFixture(t, true)
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerBID, validInput(), nil)
		requireHTTPStatus(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("negative price", func(t *testing.T) {
		f := newProductFixture(t, true)
		in := validInput()
		in.UnitPrice = decimal.NewFromInt(-1)
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, in, nil)
		requireHTTPStatus(t, err, http.StatusBadRequest)
	})

	t.Run("image without storage", func(t *testing.T) {
		f := newProductFixture(t, false)
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), pngUpload("x"))
		requireHTTPStatus(t, err, http.StatusServiceUnavailable)
	})

	t.Run("unsupported image type", func(t *testing.T) {
		f := newProductFixture(t, true)
		img := pngUpload("GIF89a")
		img.ContentType = "image/gif"
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), img)
		requireHTTPStatus(t, err, http.StatusBadRequest)
		assert.Equal(t, 0, f.images.Count())
	})

	t.Run("image too large", func(t *testing.T) {
		f := newProductFixture(t, true)
		img := pngUpload("x")
		img.Size = usecase.MaxImageBytes + 1
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), img)
		requireHTTPStatus(t, err, http.StatusBadRequest)
	})

	t.Run("upload failure", func(t *testing.T) {
		f := newProductFixture(t, true)
		f.images.UploadErr = errors.New("bucket gone")
		_, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), pngUpload("x"))
		requireHTTPStatus(t, err, http.StatusBadGateway)
	})
}

// 監査ログが書けなくても商品作成は成功
func TestProduct_SellerCreate_AuditFailureIsNotFatal(t *testing.T) {
	f := newProductFixture(t, false)
	f.store.FailOn(memstore.OpAuditCreate, errors.New("audit table locked"))

	p, err := f.uc.SellerCreateProduct(context.Background(), sellerAID, validInput(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestProduct_SellerUpdate_ReplacesImageAndAudits(t *testing.T) {
	f := newProductFixture(t, true)
	ctx := context.Background()

	p, err := f.uc.SellerCreateProduct(ctx, sellerAID, validInput(), pngUpload("old"))
	require.NoError(t, err)
	oldObject := p.ImageObject

	stock := int64(3)
	updated, err := f.uc.SellerUpdateProduct(ctx, sellerAID, p.ID, usecase.SellerProductPatch{Stock: &stock}, pngUpload("new"))
	require.NoError(t, err)

	assert.Equal(t, int64(3), updated.Stock)
	assert.NotEqual(t, oldObject, updated.ImageObject)
	assert.False(t, f.images.Has(oldObject))
	assert.True(t, f.images.Has(updated.ImageObject))

	logs := auditsOf(t, f.store, model.AuditActionUpdateProduct)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].BeforeJSON, `"stock":12`)
	assert.Contains(t, logs[0].AfterJSON, `"stock":3`)

	got, err := f.store.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Stock)
}

// 他の出品者の商品は見つからない扱い
func TestProduct_SellerUpdate_NotOwner(t *testing.T) {
	f := newProductFixture(t, false)
	ctx := context.Background()

	p, err := f.uc.SellerCreateProduct(ctx, sellerAID, validInput(), nil)
	require.NoError(t, err)

	name := "hijacked"
	_, err = f.uc.SellerUpdateProduct(ctx, sellerBID, p.ID, usecase.SellerProductPatch{Name: &name}, nil)
	requireHTTPStatus(t, err, http.StatusNotFound)

	err = f.uc.SellerDeleteProduct(ctx, sellerBID, p.ID)
	requireHTTPStatus(t, err, http.StatusNotFound)
}

func TestProduct_SellerDelete(t *testing.T) {
	f := newProductFixture(t, true)
	ctx := context.Background()

	p, err := f.uc.SellerCreateProduct(ctx, sellerAID, validInput(), pngUpload("img"))
	require.NoError(t, err)

	require.NoError(t, f.uc.SellerDeleteProduct(ctx, sellerAID, p.ID))
	assert.False(t, f.images.Has(p.ImageObject))

	_, err = f.uc.GetProductDetail(ctx, p.ID)
	requireHTTPStatus(t, err, http.StatusNotFound)
	assert.Len(t, auditsOf(t, f.store, model.AuditActionDeleteProduct), 1)
}

func TestProduct_ListPublic_Validation(t *testing.T) {
	f := newProductFixture(t, false)
	ctx := context.Background()

	minP := decimal.NewFromInt(100)
	maxP := decimal.NewFromInt(10)

	cases := []struct {
		name string
		in   usecase.ListProductsInput
	}{
		{name: "page 0", in: usecase.ListProductsInput{Page: 0, Limit: 10}},
		{name: "limit too big", in: usecase.ListProductsInput{Page: 1, Limit: 101}},
		{name: "min over max", in: usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: &minP, MaxPrice: &maxP}},
		{name: "bad seller id", in: usecase.ListProductsInput{Page: 1, Limit: 10, SellerID: "abc"}},
		{name: "bad sort", in: usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "random"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.ListPublicProducts(ctx, tc.in)
			requireHTTPStatus(t, err, http.StatusBadRequest)
		})
	}
}

func TestProduct_ListPublic_FiltersInactiveAndBySeller(t *testing.T) {
	f := newProductFixture(t, false)
	ctx := context.Background()

	_, err := f.uc.SellerCreateProduct(ctx, sellerAID, validInput(), nil)
	require.NoError(t, err)
	hidden := validInput()
	hidden.Name = "Hidden"
	hidden.IsActive = false
	_, err = f.uc.SellerCreateProduct(ctx, sellerAID, hidden, nil)
	require.NoError(t, err)

	out, err := f.uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, SellerID: sellerAID})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Kopi Gayo", out.Items[0].Name)
	assert.Equal(t, int64(1), out.Total)
}

func TestProduct_GetDetail_InvalidID(t *testing.T) {
	f := newProductFixture(t, false)

	_, err := f.uc.GetProductDetail(context.Background(), "12")
	requireHTTPStatus(t, err, http.StatusBadRequest)
}
