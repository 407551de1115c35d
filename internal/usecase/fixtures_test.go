package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/memstore"
	"marketplace/internal/logger"
	"marketplace/internal/usecase"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =====================
// 固定データ
// =====================

const (
	buyerID   = "11111111-1111-1111-1111-111111111111"
	sellerAID = "22222222-2222-2222-2222-222222222222"
	sellerBID = "33333333-3333-3333-3333-333333333333"
	adminID   = "44444444-4444-4444-4444-444444444444"
	productP1 = "aaaaaaaa-0000-0000-0000-000000000001"
	productP2 = "aaaaaaaa-0000-0000-0000-000000000002"
	productP3 = "aaaaaaaa-0000-0000-0000-000000000003"
)

// =====================
// Clock / IDGenerator
// =====================

// 呼ぶたびに1秒進む時計（created_at の順序を作る）
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

// =====================
// Interaction の記録用
// =====================

type recordedNotice struct {
	Kind    usecase.NoticeKind
	Message string
}

type recordingUI struct {
	mu        sync.Mutex
	answer    bool
	questions []string
	notices   []recordedNotice
}

func (r *recordingUI) Confirm(_ context.Context, q string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
	return r.answer, nil
}

func (r *recordingUI) Notify(_ context.Context, kind usecase.NoticeKind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, recordedNotice{Kind: kind, Message: msg})
}

func (r *recordingUI) noticesOf(kind usecase.NoticeKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// =====================
// seed
// =====================

type cartFixture struct {
	store *memstore.Store
	ui    *recordingUI
	clock *stepClock
	cart  *usecase.CartUsecase
}

// 購入者1人、出品者2人（Toko Satu / Toko Dua）、商品3つ
func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	st := memstore.New()
	st.PutUser(model.User{ID: buyerID, DisplayName: "Budi", Email: "budi@example.com", Role: model.RoleBuyer, IsActive: true})
	st.PutSeller(model.SellerProfile{SellerID: sellerAID, StoreName: "Toko Satu", ContactPhone: "+62 812-3456-7890"})
	st.PutSeller(model.SellerProfile{SellerID: sellerBID, StoreName: "Toko Dua", ContactPhone: "0812 000 111"})
	st.PutProduct(model.Product{ID: productP1, SellerID: sellerAID, Name: "P1", UnitPrice: decimal.NewFromInt(5000), Stock: 10, IsActive: true})
	st.PutProduct(model.Product{ID: productP2, SellerID: sellerBID, Name: "P2", UnitPrice: decimal.NewFromInt(7000), Stock: 5, IsActive: true})
	st.PutProduct(model.Product{ID: productP3, SellerID: sellerAID, Name: "P3", UnitPrice: decimal.NewFromInt(1500), Stock: 3, IsActive: true})

	ui := &recordingUI{answer: true}
	clock := newStepClock()
	cart := usecase.NewCartUsecase(st.Carts(), st.Products(), ui, uuidGen{}, clock, logger.Discard())

	return &cartFixture{store: st, ui: ui, clock: clock, cart: cart}
}

func (f *cartFixture) snapshot(t *testing.T) usecase.Snapshot {
	t.Helper()
	snap, err := f.cart.Snapshot(context.Background(), buyerID)
	require.NoError(t, err)
	return snap
}

func requireKind(t *testing.T, err error, kind usecase.ErrorKind) *usecase.CartError {
	t.Helper()
	require.Error(t, err)
	ce, ok := usecase.AsCartError(err)
	require.True(t, ok, "want CartError, got %T: %v", err, err)
	require.Equal(t, kind, ce.Kind)
	return ce
}

func requireHTTPStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "want HTTPError, got %T: %v", err, err)
	require.Equal(t, status, he.Status)
}

func mustMoney(t *testing.T) usecase.MoneyFormat {
	t.Helper()
	m, err := usecase.NewMoneyFormat("Rp", "id", 0)
	require.NoError(t, err)
	return m
}
