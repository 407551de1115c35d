package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 管理者のユーザー操作と監査ログ閲覧
type AdminUsecase struct {
	users     repo.UserRepository
	auditRepo repo.AuditLogRepository
	clock     Clock
	logger    *slog.Logger
}

func NewAdminUsecase(users repo.UserRepository, auditRepo repo.AuditLogRepository, clock Clock, logger *slog.Logger) *AdminUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminUsecase{users: users, auditRepo: auditRepo, clock: clock, logger: logger}
}

type ForceLogoutOutput struct {
	UserID          string `json:"user_id"`
	NewTokenVersion int    `json:"new_token_version"`
}

// token_versionを上げて、発行済みのアクセストークンを全部無効にする
func (u *AdminUsecase) ForceLogout(ctx context.Context, adminID string, targetUserID string) (ForceLogoutOutput, error) {
	if adminID == "" {
		return ForceLogoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !isUUID(targetUserID) {
		return ForceLogoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	err := u.users.IncrementTokenVersion(ctx, targetUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return ForceLogoutOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ForceLogoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || user == nil {
		return ForceLogoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	writeAudit(ctx, u.auditRepo, u.clock, u.logger, model.AuditLog{
		ActorUserID:  adminID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   targetUserID,
	}, nil, map[string]int{"token_version": user.TokenVersion})

	return ForceLogoutOutput{UserID: user.ID, NewTokenVersion: user.TokenVersion}, nil
}

type AuditLogQuery struct {
	ActorUserID  string
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (u *AdminUsecase) ListAuditLogs(ctx context.Context, q AuditLogQuery) ([]model.AuditLog, error) {
	if q.Limit < 0 || q.Limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if q.Offset < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, NewHTTPError(http.StatusBadRequest, "from must be <= to")
	}

	f := repo.AuditLogFilter{
		CreatedFrom: q.From,
		CreatedTo:   q.To,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if q.ActorUserID != "" {
		f.ActorUserID = &q.ActorUserID
	}
	if q.Action != "" {
		a := model.AuditAction(q.Action)
		f.Action = &a
	}
	if q.ResourceType != "" {
		rt := model.AuditResourceType(q.ResourceType)
		f.ResourceType = &rt
	}
	if q.ResourceID != "" {
		f.ResourceID = &q.ResourceID
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return logs, nil
}
