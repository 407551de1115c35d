package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/db"
	gormrepo "marketplace/internal/infra/repository"
	repo "marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// INTEGRATION_TESTS=1 のときだけDockerのPostgresで動かす
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run postgres tests")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "marketplace"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/marketplace?sslmode=disable", host, port.Port())

	//ポートが開いてもすぐは受け付けないことがある
	var gdb *gorm.DB
	require.Eventually(t, func() bool {
		gdb, err = db.Connect(dsn, false)
		if err != nil {
			return false
		}
		sqlDB, err := gdb.DB()
		return err == nil && sqlDB.PingContext(ctx) == nil
	}, 30*time.Second, 500*time.Millisecond)

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

type seeded struct {
	buyer  model.User
	seller model.SellerProfile
	p1     model.Product
	p2     model.Product
}

func seed(t *testing.T, gdb *gorm.DB) seeded {
	t.Helper()
	ctx := context.Background()

	users := gormrepo.NewUserGormRepository(gdb)
	buyer := model.User{ID: uuid.NewString(), DisplayName: "Budi", Email: "budi@example.com", Password: "x", Role: model.RoleBuyer, IsActive: true}
	require.NoError(t, users.Create(ctx, &buyer))
	sellerUser := model.User{ID: uuid.NewString(), DisplayName: "Sari", Email: "sari@example.com", Password: "x", Role: model.RoleSeller, IsActive: true}
	require.NoError(t, users.Create(ctx, &sellerUser))

	sellers := gormrepo.NewSellerGormRepository(gdb)
	seller, err := sellers.Upsert(ctx, model.SellerProfile{SellerID: sellerUser.ID, StoreName: "Toko Satu", ContactPhone: "+62 812-3456-7890"})
	require.NoError(t, err)

	products := gormrepo.NewProductGormRepository(gdb)
	p1, err := products.Create(ctx, model.Product{
		ID: uuid.NewString(), SellerID: seller.SellerID, Name: "Kopi Gayo 100%", UnitPrice: decimal.NewFromInt(5000), Stock: 10, IsActive: true,
	})
	require.NoError(t, err)
	p2, err := products.Create(ctx, model.Product{
		ID: uuid.NewString(), SellerID: seller.SellerID, Name: "Teh Melati", UnitPrice: decimal.NewFromInt(7000), Stock: 0, IsActive: true,
	})
	require.NoError(t, err)

	return seeded{buyer: buyer, seller: seller, p1: p1, p2: p2}
}

func TestGormRepositories(t *testing.T) {
	gdb := setupPostgres(t)
	ctx := context.Background()
	s := seed(t, gdb)

	t.Run("duplicate email", func(t *testing.T) {
		users := gormrepo.NewUserGormRepository(gdb)
		dup := model.User{ID: uuid.NewString(), Email: "budi@example.com", Password: "x", Role: model.RoleBuyer}
		err := users.Create(ctx, &dup)
		require.ErrorIs(t, err, repo.ErrDuplicateEmail)
	})

	t.Run("token version increment", func(t *testing.T) {
		users := gormrepo.NewUserGormRepository(gdb)
		require.NoError(t, users.IncrementTokenVersion(ctx, s.buyer.ID))
		u, err := users.FindByID(ctx, s.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, u.TokenVersion)

		require.ErrorIs(t, users.IncrementTokenVersion(ctx, uuid.NewString()), repo.ErrNotFound)

		missing, err := users.FindByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("inactive user and column limited update", func(t *testing.T) {
		users := gormrepo.NewUserGormRepository(gdb)
		banned := model.User{ID: uuid.NewString(), DisplayName: "Andi", Email: "andi@example.com", Password: "x", Role: model.RoleBuyer, IsActive: false}
		require.NoError(t, users.Create(ctx, &banned))

		got, err := users.FindByID(ctx, banned.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		got.DisplayName = "Andi S"
		got.Email = "changed@example.com"
		require.NoError(t, users.Update(ctx, got))

		again, err := users.FindByID(ctx, banned.ID)
		require.NoError(t, err)
		assert.Equal(t, "Andi S", again.DisplayName)
		assert.Equal(t, "andi@example.com", again.Email)

		require.ErrorIs(t, users.Update(ctx, &model.User{ID: uuid.NewString()}), repo.ErrNotFound)
	})

	t.Run("seller upsert keeps recommendation", func(t *testing.T) {
		sellers := gormrepo.NewSellerGormRepository(gdb)
		require.NoError(t, sellers.SetRecommended(ctx, s.seller.SellerID, true))

		saved, err := sellers.Upsert(ctx, model.SellerProfile{SellerID: s.seller.SellerID, StoreName: "Toko Satu Baru", ContactPhone: "0812"})
		require.NoError(t, err)
		assert.Equal(t, "Toko Satu Baru", saved.StoreName)
		assert.True(t, saved.Recommended)

		items, total, err := sellers.List(ctx, 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)

		require.ErrorIs(t, sellers.SetRecommended(ctx, uuid.NewString(), true), repo.ErrNotFound)
	})

	t.Run("product list filters", func(t *testing.T) {
		products := gormrepo.NewProductGormRepository(gdb)

		items, total, err := products.ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, InStock: true})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, s.p1.ID, items[0].ID)
		require.NotNil(t, items[0].Seller)

		// % はワイルドカードではなく文字として検索
		items, _, err = products.ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Q: "100%"})
		require.NoError(t, err)
		require.Len(t, items, 1)

		items, _, err = products.ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Sort: "price_desc"})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, s.p2.ID, items[0].ID)
	})

	t.Run("cart entries", func(t *testing.T) {
		carts := gormrepo.NewCartGormRepository(gdb)
		now := time.Now().UTC()

		e1, err := carts.Insert(ctx, model.CartEntry{
			ID: uuid.NewString(), BuyerID: s.buyer.ID, ProductID: s.p1.ID, Quantity: 2,
			LineTotal: model.LineTotalOf(s.p1.UnitPrice, 2), CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		require.NotNil(t, e1.Product)
		require.NotNil(t, e1.Product.Seller)
		assert.Equal(t, "Toko Satu Baru", e1.Product.Seller.StoreName)

		_, err = carts.Insert(ctx, model.CartEntry{
			ID: uuid.NewString(), BuyerID: s.buyer.ID, ProductID: s.p2.ID, Quantity: 1,
			LineTotal: s.p2.UnitPrice, CreatedAt: now.Add(time.Second), UpdatedAt: now,
		})
		require.NoError(t, err)

		//同じ商品の2行目はunique制約
		_, err = carts.Insert(ctx, model.CartEntry{
			ID: uuid.NewString(), BuyerID: s.buyer.ID, ProductID: s.p1.ID, Quantity: 1,
			LineTotal: s.p1.UnitPrice, CreatedAt: now, UpdatedAt: now,
		})
		require.Error(t, err)

		updated, err := carts.UpdateQuantity(ctx, e1.ID, 4, model.LineTotalOf(s.p1.UnitPrice, 4))
		require.NoError(t, err)
		assert.EqualValues(t, 4, updated.Quantity)
		assert.True(t, decimal.NewFromInt(20000).Equal(updated.LineTotal))

		_, err = carts.UpdateQuantity(ctx, uuid.NewString(), 1, decimal.Zero)
		require.ErrorIs(t, err, repo.ErrNotFound)

		//削除済み商品も明細には残る
		require.NoError(t, gormrepo.NewProductGormRepository(gdb).SoftDelete(ctx, s.p2.ID))

		entries, err := carts.ListByBuyer(ctx, s.buyer.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, s.p1.ID, entries[0].ProductID)
		require.NotNil(t, entries[1].Product)
		assert.Equal(t, "Teh Melati", entries[1].Product.Name)

		n, err := carts.DeleteByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = carts.DeleteByBuyer(ctx, s.buyer.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		entries, err = carts.ListByBuyer(ctx, s.buyer.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("audit logs newest first", func(t *testing.T) {
		audits := gormrepo.NewAuditLogGormRepository(gdb)
		base := time.Now().UTC()
		for i, action := range []model.AuditAction{model.AuditActionCreateProduct, model.AuditActionUpdateProduct, model.AuditActionForceLogout} {
			require.NoError(t, audits.Create(ctx, model.AuditLog{
				ActorUserID:  s.seller.SellerID,
				Action:       action,
				ResourceType: model.AuditResourceProduct,
				ResourceID:   s.p1.ID,
				CreatedAt:    base.Add(time.Duration(i) * time.Second),
			}))
		}

		logs, err := audits.List(ctx, repo.AuditLogFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, model.AuditActionForceLogout, logs[0].Action)

		action := model.AuditActionUpdateProduct
		logs, err = audits.List(ctx, repo.AuditLogFilter{Action: &action})
		require.NoError(t, err)
		require.Len(t, logs, 1)

		from := base.Add(500 * time.Millisecond)
		logs, err = audits.List(ctx, repo.AuditLogFilter{CreatedFrom: &from, Limit: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.AuditActionForceLogout, logs[0].Action)
	})
}
