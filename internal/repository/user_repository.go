package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
)

// メール重複
var ErrDuplicateEmail = errors.New("duplicate email")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（メール重複はErrDuplicateEmail）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。無ければ (nil, nil)。
	FindByID(ctx context.Context, userID string) (*model.User, error)
	//メールからユーザーを一件取得する。無ければ (nil, nil)。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 最後のログインなど
	Update(ctx context.Context, user *model.User) error
	// token_versionを+1（発行済みトークンを無効化）。対象なしはErrNotFound。
	IncrementTokenVersion(ctx context.Context, userID string) error
}
