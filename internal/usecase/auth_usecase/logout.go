package auth

import (
	"context"
	"errors"

	"marketplace/internal/repository"
)

var ErrUnknownUser = errors.New("unknown user")

// LogoutUsecase は自分のトークンを全部無効にする（token_version +1）。
// TokenVersionGuard が古いトークンを弾く。
type LogoutUsecase struct {
	userRepo repository.UserRepository
}

func NewLogoutUsecase(userRepo repository.UserRepository) *LogoutUsecase {
	return &LogoutUsecase{userRepo: userRepo}
}

func (u *LogoutUsecase) Execute(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnknownUser
	}
	err := u.userRepo.IncrementTokenVersion(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnknownUser
	}
	return err
}
