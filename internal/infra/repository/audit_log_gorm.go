package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

var _ repo.AuditLogRepository = (*AuditLogGormRepository)(nil)

func (r *AuditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.db.WithContext(ctx).Create(&log).Error
}

// 新しい順（同時刻はid順）
func (r *AuditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs := []model.AuditLog{}
	err := r.db.WithContext(ctx).
		Scopes(auditFilter(f), auditPage(f.Limit, f.Offset)).
		Order("created_at desc").
		Order("id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// nilの条件は付けない
func auditFilter(f repo.AuditLogFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		eq := map[string]any{}
		if f.ActorUserID != nil {
			eq["actor_user_id"] = *f.ActorUserID
		}
		if f.Action != nil {
			eq["action"] = string(*f.Action)
		}
		if f.ResourceType != nil {
			eq["resource_type"] = string(*f.ResourceType)
		}
		if f.ResourceID != nil {
			eq["resource_id"] = *f.ResourceID
		}
		if len(eq) > 0 {
			tx = tx.Where(eq)
		}
		if f.CreatedFrom != nil {
			tx = tx.Where("created_at >= ?", *f.CreatedFrom)
		}
		if f.CreatedTo != nil {
			tx = tx.Where("created_at <= ?", *f.CreatedTo)
		}
		return tx
	}
}

func auditPage(limit, offset int) func(*gorm.DB) *gorm.DB {
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit).Offset(max(offset, 0))
	}
}
