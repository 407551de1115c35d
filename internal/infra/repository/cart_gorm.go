package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

var _ repo.CartEntryRepository = (*CartGormRepository)(nil)

// 削除済みの商品も表示のために読む（在庫0扱いはusecase側）
func (r *CartGormRepository) withProduct(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Product.Seller")
}

// 購入者の明細（古い順）
func (r *CartGormRepository) ListByBuyer(ctx context.Context, buyerID string) ([]model.CartEntry, error) {
	var entries []model.CartEntry

	err := r.withProduct(r.db.WithContext(ctx)).
		Where("buyer_id = ?", buyerID).
		Order("created_at asc").
		Order("id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *CartGormRepository) Insert(ctx context.Context, entry model.CartEntry) (model.CartEntry, error) {
	//関連は保存しない
	entry.Product = nil
	if err := r.db.WithContext(ctx).Omit("Product").Create(&entry).Error; err != nil {
		if isUniqueViolation(err) {
			return model.CartEntry{}, fmt.Errorf("cart item already exists: %w", err)
		}
		return model.CartEntry{}, err
	}
	return r.findByID(ctx, entry.ID)
}

// 数量と小計を更新（1回の書き込み）
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, entryID string, qty int64, lineTotal decimal.Decimal) (model.CartEntry, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CartEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"quantity":   qty,
			"line_total": lineTotal,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return model.CartEntry{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.CartEntry{}, repo.ErrNotFound
	}
	return r.findByID(ctx, entryID)
}

func (r *CartGormRepository) DeleteByID(ctx context.Context, entryID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", entryID).Delete(&model.CartEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *CartGormRepository) DeleteByBuyer(ctx context.Context, buyerID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Delete(&model.CartEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *CartGormRepository) findByID(ctx context.Context, entryID string) (model.CartEntry, error) {
	var e model.CartEntry
	err := r.withProduct(r.db.WithContext(ctx)).Where("id = ?", entryID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartEntry{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartEntry{}, err
	}
	return e, nil
}
