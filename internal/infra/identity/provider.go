package identity

import (
	"context"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
)

type ctxKey struct{}

// WithUserID はログイン中のユーザーIDをcontextに入れる（AuthJWTが呼ぶ）。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Provider はcontextのユーザーIDからユーザーを読む。
type Provider struct {
	users repository.UserRepository
}

func NewProvider(users repository.UserRepository) *Provider {
	return &Provider{users: users}
}

var _ repository.IdentityProvider = (*Provider)(nil)

// 未ログイン・停止ユーザーは (nil, nil)
func (p *Provider) CurrentUser(ctx context.Context) (*model.User, error) {
	id, ok := UserIDFrom(ctx)
	if !ok {
		return nil, nil
	}

	u, err := p.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return u, nil
}
