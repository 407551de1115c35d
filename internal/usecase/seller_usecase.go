package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 出品者のお店情報と、管理者のおすすめ設定
type SellerUsecase struct {
	sellerRepo repo.SellerProfileRepository
	auditRepo  repo.AuditLogRepository
	clock      Clock
	logger     *slog.Logger
}

// DI
func NewSellerUsecase(sellerRepo repo.SellerProfileRepository, auditRepo repo.AuditLogRepository, clock Clock, logger *slog.Logger) *SellerUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SellerUsecase{sellerRepo: sellerRepo, auditRepo: auditRepo, clock: clock, logger: logger}
}

type SellerProfileInput struct {
	StoreName    string
	ContactPhone string
}

type SellerListOutput struct {
	Items []model.SellerProfile `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

func (u *SellerUsecase) GetProfile(ctx context.Context, sellerID string) (model.SellerProfile, error) {
	if sellerID == "" {
		return model.SellerProfile{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	p, err := u.sellerRepo.FindBySellerID(ctx, sellerID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.SellerProfile{}, NewHTTPError(http.StatusNotFound, "store profile not set up yet")
	}
	if err != nil {
		return model.SellerProfile{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

// お店情報の作成・更新。おすすめフラグは管理者だけが変える。
func (u *SellerUsecase) SaveProfile(ctx context.Context, sellerID string, in SellerProfileInput) (model.SellerProfile, error) {
	if sellerID == "" {
		return model.SellerProfile{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	name := strings.TrimSpace(in.StoreName)
	if name == "" {
		return model.SellerProfile{}, NewHTTPError(http.StatusBadRequest, "store_name required")
	}
	if len(name) > 255 {
		return model.SellerProfile{}, NewHTTPError(http.StatusBadRequest, "store_name too long")
	}

	phone := strings.TrimSpace(in.ContactPhone)
	//WhatsAppに渡せる番号か
	if phone != "" {
		digits := DigitsOnly(phone)
		if len(digits) < 6 || len(digits) > 15 {
			return model.SellerProfile{}, NewHTTPError(http.StatusBadRequest, "contact_phone must have 6 to 15 digits")
		}
	}

	saved, err := u.sellerRepo.Upsert(ctx, model.SellerProfile{
		SellerID:     sellerID,
		StoreName:    name,
		ContactPhone: phone,
		UpdatedAt:    u.clock.Now(),
	})
	if err != nil {
		u.logger.ErrorContext(ctx, "save seller profile failed", slog.String("seller_id", sellerID), slog.Any("error", err))
		return model.SellerProfile{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return saved, nil
}

func (u *SellerUsecase) AdminSetRecommended(ctx context.Context, adminID string, sellerID string, recommended bool) error {
	if adminID == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !isUUID(sellerID) {
		return NewHTTPError(http.StatusBadRequest, "invalid seller id")
	}

	before, err := u.sellerRepo.FindBySellerID(ctx, sellerID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	err = u.sellerRepo.SetRecommended(ctx, sellerID, recommended)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	writeAudit(ctx, u.auditRepo, u.clock, u.logger, model.AuditLog{
		ActorUserID:  adminID,
		Action:       model.AuditActionSetRecommendation,
		ResourceType: model.AuditResourceSeller,
		ResourceID:   sellerID,
	}, map[string]bool{"recommended": before.Recommended}, map[string]bool{"recommended": recommended})
	return nil
}

func (u *SellerUsecase) AdminListSellers(ctx context.Context, page, limit int) (SellerListOutput, error) {
	if page < 1 {
		return SellerListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return SellerListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	items, total, err := u.sellerRepo.List(ctx, page, limit)
	if err != nil {
		return SellerListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return SellerListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}
