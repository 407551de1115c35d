package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 商品画像の上限（5MiB）
const MaxImageBytes = 5 << 20

// 受け付ける画像の種類と拡張子
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type ProductUsecase struct {
	productRepo repo.ProductRepository
	sellerRepo  repo.SellerProfileRepository
	auditRepo   repo.AuditLogRepository
	images      repo.ImageStorage
	idGen       IDGenerator
	clock       Clock
	logger      *slog.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	sellerRepo repo.SellerProfileRepository,
	auditRepo repo.AuditLogRepository,
	images repo.ImageStorage,
	idGen IDGenerator,
	clock Clock,
	logger *slog.Logger,
) *ProductUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductUsecase{
		productRepo: productRepo,
		sellerRepo:  sellerRepo,
		auditRepo:   auditRepo,
		images:      images,
		idGen:       idGen,
		clock:       clock,
		logger:      logger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SellerID string
	InStock  bool
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	if in.SellerID != "" && !isUUID(in.SellerID) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid seller_id")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		SellerID: in.SellerID,
		InStock:  in.InStock,
		Sort:     in.Sort,
	})
	if err != nil {
		u.logger.ErrorContext(ctx, "list products failed", slog.Any("error", err))
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID string) (model.Product, error) {
	if !isUUID(productID) {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

// 出品者がアップロードする画像
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type SellerProductInput struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Stock       int64
	IsActive    bool
}

// PATCH用。nilは変更なし。
type SellerProductPatch struct {
	Name        *string
	Description *string
	UnitPrice   *decimal.Decimal
	Stock       *int64
	IsActive    *bool
}

func (u *ProductUsecase) SellerCreateProduct(ctx context.Context, sellerID string, in SellerProductInput, image *ImageUpload) (model.Product, error) {
	if sellerID == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateProductFields(in.Name, in.UnitPrice, in.Stock); err != nil {
		return model.Product{}, err
	}

	//お店情報が先に必要（チェックアウトの連絡先）
	if _, err := u.sellerRepo.FindBySellerID(ctx, sellerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, NewHTTPError(http.StatusUnprocessableEntity, "set up your store profile before listing products")
		}
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()
	p := model.Product{
		ID:          u.idGen.NewID(),
		SellerID:    sellerID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		UnitPrice:   in.UnitPrice.Round(2),
		Stock:       in.Stock,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if image != nil {
		object, err := u.uploadImage(ctx, sellerID, image)
		if err != nil {
			return model.Product{}, err
		}
		p.ImageObject = object
		p.ImageURL = u.images.PublicURL(object)
	}

	created, err := u.productRepo.Create(ctx, p)
	if err != nil {
		u.logger.ErrorContext(ctx, "create product failed", slog.Any("error", err))
		u.removeImage(ctx, p.ImageObject)
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.audit(ctx, sellerID, model.AuditActionCreateProduct, created.ID, nil, productAuditView(created))
	return created, nil
}

func (u *ProductUsecase) SellerUpdateProduct(ctx context.Context, sellerID string, productID string, in SellerProductPatch, image *ImageUpload) (model.Product, error) {
	current, err := u.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return model.Product{}, err
	}

	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.UnitPrice != nil {
		next.UnitPrice = in.UnitPrice.Round(2)
	}
	if in.Stock != nil {
		next.Stock = *in.Stock
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	if err := validateProductFields(next.Name, next.UnitPrice, next.Stock); err != nil {
		return model.Product{}, err
	}

	oldObject := current.ImageObject
	if image != nil {
		object, err := u.uploadImage(ctx, sellerID, image)
		if err != nil {
			return model.Product{}, err
		}
		next.ImageObject = object
		next.ImageURL = u.images.PublicURL(object)
	}
	next.UpdatedAt = u.clock.Now()

	err = u.productRepo.Update(ctx, next)
	if errors.Is(err, repo.ErrNotFound) {
		u.removeImage(ctx, imageObjectIfChanged(oldObject, next.ImageObject))
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		u.logger.ErrorContext(ctx, "update product failed", slog.String("product_id", productID), slog.Any("error", err))
		u.removeImage(ctx, imageObjectIfChanged(oldObject, next.ImageObject))
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//古い画像は消す（失敗してもログだけ）
	if image != nil {
		u.removeImage(ctx, oldObject)
	}

	u.audit(ctx, sellerID, model.AuditActionUpdateProduct, productID, productAuditView(current), productAuditView(next))
	return next, nil
}

func (u *ProductUsecase) SellerDeleteProduct(ctx context.Context, sellerID string, productID string) error {
	current, err := u.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return err
	}

	err = u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.removeImage(ctx, current.ImageObject)
	u.audit(ctx, sellerID, model.AuditActionDeleteProduct, productID, productAuditView(current), nil)
	return nil
}

// 他人の商品は見つからない扱い
func (u *ProductUsecase) ownedProduct(ctx context.Context, sellerID string, productID string) (model.Product, error) {
	if sellerID == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !isUUID(productID) {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if p.SellerID != sellerID {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

func (u *ProductUsecase) uploadImage(ctx context.Context, sellerID string, img *ImageUpload) (string, error) {
	if u.images == nil {
		return "", NewHTTPError(http.StatusServiceUnavailable, "image storage is not configured")
	}

	ct := strings.ToLower(strings.TrimSpace(img.ContentType))
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", NewHTTPError(http.StatusBadRequest, "image must be jpeg, png or webp")
	}
	if img.Size <= 0 || img.Size > MaxImageBytes {
		return "", NewHTTPError(http.StatusBadRequest, "image must be at most 5MiB")
	}

	object := fmt.Sprintf("products/%s/%s%s", sellerID, u.idGen.NewID(), ext)
	if err := u.images.Upload(ctx, object, ct, io.LimitReader(img.Body, MaxImageBytes)); err != nil {
		u.logger.ErrorContext(ctx, "image upload failed", slog.String("object", object), slog.Any("error", err))
		return "", NewHTTPError(http.StatusBadGateway, "image upload failed")
	}
	return object, nil
}

func (u *ProductUsecase) removeImage(ctx context.Context, object string) {
	if object == "" || u.images == nil {
		return
	}
	if err := u.images.Remove(ctx, object); err != nil {
		u.logger.WarnContext(ctx, "image remove failed", slog.String("object", object), slog.Any("error", err))
	}
}

// 監査ログ。書けなくても本体の操作は成功扱い。
func (u *ProductUsecase) audit(ctx context.Context, actorID string, action model.AuditAction, productID string, before, after any) {
	writeAudit(ctx, u.auditRepo, u.clock, u.logger, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
	}, before, after)
}

func writeAudit(ctx context.Context, auditRepo repo.AuditLogRepository, clock Clock, logger *slog.Logger, entry model.AuditLog, before, after any) {
	if auditRepo == nil {
		return
	}
	entry.BeforeJSON = toJSON(before)
	entry.AfterJSON = toJSON(after)
	entry.CreatedAt = clock.Now()

	if err := auditRepo.Create(ctx, entry); err != nil {
		logger.WarnContext(ctx, "audit log write failed",
			slog.String("action", string(entry.Action)),
			slog.String("resource_id", entry.ResourceID),
			slog.Any("error", err),
		)
	}
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type productAudit struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int64           `json:"stock"`
	IsActive  bool            `json:"is_active"`
	ImageURL  string          `json:"image_url,omitempty"`
}

func productAuditView(p model.Product) productAudit {
	return productAudit{
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Stock:     p.Stock,
		IsActive:  p.IsActive,
		ImageURL:  p.ImageURL,
	}
}

func validateProductFields(name string, price decimal.Decimal, stock int64) error {
	if strings.TrimSpace(name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if len(name) > 255 {
		return NewHTTPError(http.StatusBadRequest, "name too long")
	}
	if price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if stock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	return nil
}

func imageObjectIfChanged(old, next string) string {
	if old == next {
		return ""
	}
	return next
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
