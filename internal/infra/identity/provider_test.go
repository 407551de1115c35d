package identity_test

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/identity"
	"marketplace/internal/infra/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_CurrentUser(t *testing.T) {
	store := memstore.New()
	store.PutUser(model.User{ID: "u-active", DisplayName: "Budi", Role: model.RoleBuyer, IsActive: true})
	store.PutUser(model.User{ID: "u-banned", DisplayName: "Andi", Role: model.RoleBuyer, IsActive: false})
	p := identity.NewProvider(store.Users())

	t.Run("anonymous", func(t *testing.T) {
		u, err := p.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("active", func(t *testing.T) {
		u, err := p.CurrentUser(identity.WithUserID(context.Background(), "u-active"))
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "Budi", u.DisplayName)
	})

	t.Run("inactive or unknown", func(t *testing.T) {
		for _, id := range []string{"u-banned", "u-missing", ""} {
			u, err := p.CurrentUser(identity.WithUserID(context.Background(), id))
			require.NoError(t, err)
			assert.Nil(t, u, id)
		}
	})

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("db down")
		store.FailOn(memstore.OpFindUser, boom)
		t.Cleanup(func() { store.FailOn(memstore.OpFindUser, nil) })

		_, err := p.CurrentUser(identity.WithUserID(context.Background(), "u-active"))
		require.ErrorIs(t, err, boom)
	})
}
