package auth

import (
	"context"
	"strings"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
)

// 自分のプロフィール（チェックアウトの注文メッセージに名前とメールを使う）
type ProfileUsecase struct {
	userRepo repository.UserRepository
	clock    Clock
}

func NewProfileUsecase(userRepo repository.UserRepository, clock Clock) *ProfileUsecase {
	return &ProfileUsecase{userRepo: userRepo, clock: clock}
}

func (u *ProfileUsecase) Me(ctx context.Context, userID string) (model.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if user == nil {
		return model.User{}, ErrUnknownUser
	}
	if !user.IsActive {
		return model.User{}, ErrUserInactive
	}

	safe := *user
	safe.Password = ""
	return safe, nil
}

func (u *ProfileUsecase) UpdateDisplayName(ctx context.Context, userID string, displayName string) (model.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return model.User{}, ErrDisplayNameMissing
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if user == nil {
		return model.User{}, ErrUnknownUser
	}

	user.DisplayName = name
	user.UpdatedAt = u.clock.Now()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return model.User{}, err
	}

	safe := *user
	safe.Password = ""
	return safe, nil
}
