// Package memstore はDB無しで動く永続化の実装（テストとローカル確認用）。
// gormの実装と同じ順序・同じエラーを返す。
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 失敗させたい操作名（FailOn用）
const (
	OpListByBuyer    = "cart.ListByBuyer"
	OpInsert         = "cart.Insert"
	OpUpdateQuantity = "cart.UpdateQuantity"
	OpDeleteByID     = "cart.DeleteByID"
	OpDeleteByBuyer  = "cart.DeleteByBuyer"
	OpFindProduct    = "product.FindByID"
	OpFindUser       = "user.FindByID"
	OpAuditCreate    = "audit.Create"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]model.User
	sellers  map[string]model.SellerProfile
	products map[string]model.Product
	entries  map[string]model.CartEntry
	audits   []model.AuditLog
	fail     map[string]error
	writes   int
}

func New() *Store {
	return &Store{
		users:    map[string]model.User{},
		sellers:  map[string]model.SellerProfile{},
		products: map[string]model.Product{},
		entries:  map[string]model.CartEntry{},
		fail:     map[string]error{},
	}
}

// FailOn は op の次回以降の呼び出しを err で失敗させる（nilで解除）。
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// カート明細への書き込み回数
func (s *Store) CartWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) failed(op string) error {
	return s.fail[op]
}

// --- seed（テスト用） ---

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutSeller(p model.SellerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[p.SellerID] = p
}

func (s *Store) PutProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Seller = nil
	s.products[p.ID] = p
}

func (s *Store) PutEntry(e model.CartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Product = nil
	s.entries[e.ID] = e
}

// 在庫を直接変える（他の購入者が買った想定）
func (s *Store) SetStock(productID string, stock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.Stock = stock
	s.products[productID] = p
}

func (s *Store) Carts() *CartRepo       { return &CartRepo{s} }
func (s *Store) Products() *ProductRepo { return &ProductRepo{s} }
func (s *Store) Sellers() *SellerRepo   { return &SellerRepo{s} }
func (s *Store) Users() *UserRepo       { return &UserRepo{s} }
func (s *Store) Audits() *AuditRepo     { return &AuditRepo{s} }

// 商品と出品者を埋める（削除済みの商品も含む）
func (s *Store) hydrate(e model.CartEntry) model.CartEntry {
	if p, ok := s.products[e.ProductID]; ok {
		pp := s.withSeller(p)
		e.Product = &pp
	}
	return e
}

func (s *Store) withSeller(p model.Product) model.Product {
	if sp, ok := s.sellers[p.SellerID]; ok {
		spc := sp
		p.Seller = &spc
	}
	return p
}

// ---------------- cart ----------------

type CartRepo struct{ s *Store }

var _ repo.CartEntryRepository = (*CartRepo)(nil)

func (r *CartRepo) ListByBuyer(_ context.Context, buyerID string) ([]model.CartEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpListByBuyer); err != nil {
		return nil, err
	}

	out := []model.CartEntry{}
	for _, e := range s.entries {
		if e.BuyerID == buyerID {
			out = append(out, s.hydrate(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *CartRepo) Insert(_ context.Context, e model.CartEntry) (model.CartEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpInsert); err != nil {
		return model.CartEntry{}, err
	}

	for _, cur := range s.entries {
		if cur.BuyerID == e.BuyerID && cur.ProductID == e.ProductID {
			return model.CartEntry{}, fmt.Errorf("cart item already exists")
		}
	}
	if e.Quantity < 1 {
		return model.CartEntry{}, fmt.Errorf("quantity must be >= 1")
	}

	e.Product = nil
	s.entries[e.ID] = e
	s.writes++
	return s.hydrate(e), nil
}

func (r *CartRepo) UpdateQuantity(_ context.Context, entryID string, qty int64, lineTotal decimal.Decimal) (model.CartEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpUpdateQuantity); err != nil {
		return model.CartEntry{}, err
	}

	e, ok := s.entries[entryID]
	if !ok {
		return model.CartEntry{}, repo.ErrNotFound
	}
	e.Quantity = qty
	e.LineTotal = lineTotal
	e.UpdatedAt = time.Now()
	s.entries[entryID] = e
	s.writes++
	return s.hydrate(e), nil
}

func (r *CartRepo) DeleteByID(_ context.Context, entryID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpDeleteByID); err != nil {
		return 0, err
	}

	if _, ok := s.entries[entryID]; !ok {
		return 0, nil
	}
	delete(s.entries, entryID)
	s.writes++
	return 1, nil
}

func (r *CartRepo) DeleteByBuyer(_ context.Context, buyerID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpDeleteByBuyer); err != nil {
		return 0, err
	}

	var n int64
	for id, e := range s.entries {
		if e.BuyerID == buyerID {
			delete(s.entries, id)
			n++
		}
	}
	s.writes++
	return n, nil
}

// ---------------- product ----------------

type ProductRepo struct{ s *Store }

var _ repo.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) ListPublic(_ context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(q.Q))
	var hits []model.Product
	for _, p := range s.products {
		if !p.IsActive || p.DeletedAt.Valid {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if q.MinPrice != nil && p.UnitPrice.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.UnitPrice.GreaterThan(*q.MaxPrice) {
			continue
		}
		if q.SellerID != "" && p.SellerID != q.SellerID {
			continue
		}
		if q.InStock && p.Stock <= 0 {
			continue
		}
		hits = append(hits, s.withSeller(p))
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch q.Sort {
		case "price_asc":
			if !a.UnitPrice.Equal(b.UnitPrice) {
				return a.UnitPrice.LessThan(b.UnitPrice)
			}
			return a.ID < b.ID
		case "price_desc":
			if !a.UnitPrice.Equal(b.UnitPrice) {
				return a.UnitPrice.GreaterThan(b.UnitPrice)
			}
			return a.ID > b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})

	total := int64(len(hits))
	start := (q.Page - 1) * q.Limit
	if start < 0 || start >= len(hits) {
		return []model.Product{}, total, nil
	}
	end := min(start+q.Limit, len(hits))
	return hits[start:end], total, nil
}

func (r *ProductRepo) FindByID(_ context.Context, id string) (model.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpFindProduct); err != nil {
		return model.Product{}, err
	}

	p, ok := s.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return s.withSeller(p), nil
}

func (r *ProductRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return model.Product{}, fmt.Errorf("product %s already exists", p.ID)
	}
	p.Seller = nil
	s.products[p.ID] = p
	return p, nil
}

func (r *ProductRepo) Update(_ context.Context, p model.Product) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.ID]
	if !ok || cur.DeletedAt.Valid {
		return repo.ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.UnitPrice = p.UnitPrice
	cur.Stock = p.Stock
	cur.IsActive = p.IsActive
	cur.ImageURL = p.ImageURL
	cur.ImageObject = p.ImageObject
	cur.UpdatedAt = p.UpdatedAt
	s.products[p.ID] = cur
	return nil
}

func (r *ProductRepo) SoftDelete(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[id]
	if !ok || cur.DeletedAt.Valid {
		return repo.ErrNotFound
	}
	cur.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	s.products[id] = cur
	return nil
}

// ---------------- seller ----------------

type SellerRepo struct{ s *Store }

var _ repo.SellerProfileRepository = (*SellerRepo)(nil)

func (r *SellerRepo) FindBySellerID(_ context.Context, sellerID string) (model.SellerProfile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sellers[sellerID]
	if !ok {
		return model.SellerProfile{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *SellerRepo) Upsert(_ context.Context, p model.SellerProfile) (model.SellerProfile, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.sellers[p.SellerID]; ok {
		cur.StoreName = p.StoreName
		cur.ContactPhone = p.ContactPhone
		cur.UpdatedAt = p.UpdatedAt
		s.sellers[p.SellerID] = cur
		return cur, nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	s.sellers[p.SellerID] = p
	return p, nil
}

func (r *SellerRepo) SetRecommended(_ context.Context, sellerID string, recommended bool) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sellers[sellerID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Recommended = recommended
	s.sellers[sellerID] = cur
	return nil
}

func (r *SellerRepo) List(_ context.Context, page, limit int) ([]model.SellerProfile, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.SellerProfile, 0, len(s.sellers))
	for _, p := range s.sellers {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Recommended != all[j].Recommended {
			return all[i].Recommended
		}
		if all[i].StoreName != all[j].StoreName {
			return all[i].StoreName < all[j].StoreName
		}
		return all[i].SellerID < all[j].SellerID
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return []model.SellerProfile{}, total, nil
	}
	return all[start:min(start+limit, len(all))], total, nil
}

// ---------------- user ----------------

type UserRepo struct{ s *Store }

var _ repo.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.users {
		if cur.Email == u.Email {
			return repo.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpFindUser); err != nil {
		return nil, err
	}

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			uc := u
			return &uc, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Update(_ context.Context, u *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) IncrementTokenVersion(_ context.Context, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TokenVersion++
	s.users[id] = u
	return nil
}

// ---------------- audit ----------------

type AuditRepo struct{ s *Store }

var _ repo.AuditLogRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Create(_ context.Context, log model.AuditLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(OpAuditCreate); err != nil {
		return err
	}

	log.ID = int64(len(s.audits) + 1)
	s.audits = append(s.audits, log)
	return nil
}

// 新しい順
func (r *AuditRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.AuditLog
	for i := len(s.audits) - 1; i >= 0; i-- {
		l := s.audits[i]
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	start := max(f.Offset, 0)
	if start >= len(out) {
		return []model.AuditLog{}, nil
	}
	return out[start:min(start+limit, len(out))], nil
}
