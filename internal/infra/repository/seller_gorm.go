package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SellerGormRepository struct {
	db *gorm.DB
}

// DI
func NewSellerGormRepository(db *gorm.DB) *SellerGormRepository {
	return &SellerGormRepository{db: db}
}

var _ repo.SellerProfileRepository = (*SellerGormRepository)(nil)

func (r *SellerGormRepository) FindBySellerID(ctx context.Context, sellerID string) (model.SellerProfile, error) {
	var p model.SellerProfile
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SellerProfile{}, repo.ErrNotFound
	}
	if err != nil {
		return model.SellerProfile{}, err
	}
	return p, nil
}

// 店名と連絡先だけ更新（recommendedは残す）
func (r *SellerGormRepository) Upsert(ctx context.Context, p model.SellerProfile) (model.SellerProfile, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"store_name", "contact_phone", "updated_at"}),
		}).
		Create(&p).Error
	if err != nil {
		return model.SellerProfile{}, err
	}
	return r.FindBySellerID(ctx, p.SellerID)
}

func (r *SellerGormRepository) SetRecommended(ctx context.Context, sellerID string, recommended bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.SellerProfile{}).
		Where("seller_id = ?", sellerID).
		Update("recommended", recommended)
	if res.Error != nil {
		return res.Error
	}
	// 値が同じでもPostgresは1件と数える
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// おすすめ → 店名順
func (r *SellerGormRepository) List(ctx context.Context, page, limit int) ([]model.SellerProfile, int64, error) {
	var items []model.SellerProfile
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.SellerProfile{})
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := tx.
		Order("recommended desc").
		Order("store_name asc").
		Order("seller_id asc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
