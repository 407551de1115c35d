package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 現在のユーザーを返す。未ログインなら (nil, nil)。
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}
