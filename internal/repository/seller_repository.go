package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type SellerProfileRepository interface {
	FindBySellerID(ctx context.Context, sellerID string) (model.SellerProfile, error)
	Upsert(ctx context.Context, p model.SellerProfile) (model.SellerProfile, error)
	SetRecommended(ctx context.Context, sellerID string, recommended bool) error
	List(ctx context.Context, page, limit int) ([]model.SellerProfile, int64, error)
}
