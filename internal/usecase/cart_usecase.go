package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase はカートの業務ロジック（単一出品者・在庫上限・小計の再計算）。
// 毎回カートを読み直してから判断する。往復は増えるが、トランザクション無しで
// 制約を守るための割り切り。在庫チェックは読み→書きでロックしない。
type CartUsecase struct {
	entries  repo.CartEntryRepository
	products repo.ProductRepository
	ui       Interaction
	idGen    IDGenerator
	clock    Clock
	logger   *slog.Logger
}

func NewCartUsecase(
	entries repo.CartEntryRepository,
	products repo.ProductRepository,
	ui Interaction,
	idGen IDGenerator,
	clock Clock,
	logger *slog.Logger,
) *CartUsecase {
	if ui == nil {
		ui = NopInteraction{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CartUsecase{
		entries:  entries,
		products: products,
		ui:       ui,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}
}

type AddResult struct {
	EntryID  string `json:"entry_id"`
	Quantity int64  `json:"quantity"`
	Created  bool   `json:"created"`
}

type SnapshotItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int64           `json:"stock"`
	ImageURL  string          `json:"image_url"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	CreatedAt time.Time       `json:"created_at"`
}

type SellerInfo struct {
	SellerID     string `json:"seller_id"`
	StoreName    string `json:"store_name"`
	ContactPhone string `json:"contact_phone"`
	Recommended  bool   `json:"recommended"`
}

// Snapshot はカートの読み取り結果。単一出品者なので Seller はスカラー。
type Snapshot struct {
	State    model.CartState `json:"state"`
	Items    []SnapshotItem  `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Seller   *SellerInfo     `json:"seller"`
}

// AddProduct は商品IDから最新の商品を読んで AddToCart する。
func (u *CartUsecase) AddProduct(ctx context.Context, buyerID string, productID string, qty int64) (AddResult, error) {
	if strings.TrimSpace(buyerID) == "" {
		return AddResult{}, errNotAuthenticated()
	}

	//uuidでないIDはDBに投げない
	if !isUUID(productID) {
		return AddResult{}, errProductNotFound()
	}

	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return AddResult{}, errProductNotFound()
	}
	if err != nil {
		return AddResult{}, u.persistence(ctx, "load product", err)
	}
	if !p.IsActive {
		return AddResult{}, errProductNotFound()
	}

	return u.AddToCart(ctx, buyerID, p, qty)
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 失敗時は書き込みなし、成功時は書き込み1回。
func (u *CartUsecase) AddToCart(ctx context.Context, buyerID string, p model.Product, qty int64) (AddResult, error) {
	if strings.TrimSpace(buyerID) == "" {
		return AddResult{}, errNotAuthenticated()
	}
	if qty < 1 {
		return AddResult{}, errInvalidQuantity("quantity must be at least 1")
	}

	//在庫ゼロ
	if p.Stock <= 0 {
		return AddResult{}, errOutOfStock(p.Name)
	}

	entries, err := u.entries.ListByBuyer(ctx, buyerID)
	if err != nil {
		return AddResult{}, u.persistence(ctx, "load cart", err)
	}

	//単一出品者チェック
	for _, e := range entries {
		if e.SellerID() != p.SellerID {
			return AddResult{}, errMixedSeller(storeNameOf(e))
		}
	}

	//既存明細があれば加算
	if existing := findByProduct(entries, p.ID); existing != nil {
		//残り在庫と比べてから足す（int64のあふれ防止）
		if qty > p.Stock-existing.Quantity {
			return AddResult{}, errInsufficientStock(p.Name, p.Stock)
		}
		newQty := existing.Quantity + qty

		updated, err := u.entries.UpdateQuantity(ctx, existing.ID, newQty, model.LineTotalOf(p.UnitPrice, newQty))
		if errors.Is(err, repo.ErrNotFound) {
			return AddResult{}, errEntryNotFound()
		}
		if err != nil {
			return AddResult{}, u.persistence(ctx, "update cart item", err)
		}

		u.ui.Notify(ctx, NoticeSuccess, fmt.Sprintf("%s now x%d in your cart", p.Name, newQty))
		return AddResult{EntryID: updated.ID, Quantity: newQty}, nil
	}

	if qty > p.Stock {
		return AddResult{}, errInsufficientStock(p.Name, p.Stock)
	}

	now := u.clock.Now()
	created, err := u.entries.Insert(ctx, model.CartEntry{
		ID:        u.idGen.NewID(),
		BuyerID:   buyerID,
		ProductID: p.ID,
		Quantity:  qty,
		LineTotal: model.LineTotalOf(p.UnitPrice, qty),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return AddResult{}, u.persistence(ctx, "add cart item", err)
	}

	u.ui.Notify(ctx, NoticeSuccess, fmt.Sprintf("%s added to your cart", p.Name))
	return AddResult{EntryID: created.ID, Quantity: qty, Created: true}, nil
}

// UpdateQuantity は購入者のカートから明細を読み直して ApplyDelta する。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, buyerID string, entryID string, delta int64) (int64, error) {
	if strings.TrimSpace(buyerID) == "" {
		return 0, errNotAuthenticated()
	}

	entries, err := u.entries.ListByBuyer(ctx, buyerID)
	if err != nil {
		return 0, u.persistence(ctx, "load cart", err)
	}

	current := findByID(entries, entryID)
	if current == nil {
		return 0, errEntryNotFound()
	}

	return u.ApplyDelta(ctx, *current, delta)
}

// ApplyDelta は数量を delta だけ変える（UIでは+1/-1）。
// 1未満は拒否（削除はRemoveEntry）、在庫超えも拒否。
func (u *CartUsecase) ApplyDelta(ctx context.Context, current model.CartEntry, delta int64) (int64, error) {
	//足し算の前に範囲を見る
	if delta < 1-current.Quantity {
		return 0, errInvalidQuantity("quantity cannot go below 1; use remove to delete the item")
	}
	if current.Product == nil {
		return 0, errProductNotFound()
	}

	stock := availableStock(*current.Product)
	if delta > stock-current.Quantity {
		return 0, errInsufficientStock(current.Product.Name, stock)
	}
	newQty := current.Quantity + delta

	_, err := u.entries.UpdateQuantity(ctx, current.ID, newQty, model.LineTotalOf(current.Product.UnitPrice, newQty))
	if errors.Is(err, repo.ErrNotFound) {
		return 0, errEntryNotFound()
	}
	if err != nil {
		return 0, u.persistence(ctx, "update cart item", err)
	}

	return newQty, nil
}

// RemoveEntry は確認のうえ明細を削除。無い明細は何もしない（false）。
func (u *CartUsecase) RemoveEntry(ctx context.Context, buyerID string, entryID string) (bool, error) {
	if strings.TrimSpace(buyerID) == "" {
		return false, errNotAuthenticated()
	}

	entries, err := u.entries.ListByBuyer(ctx, buyerID)
	if err != nil {
		return false, u.persistence(ctx, "load cart", err)
	}

	target := findByID(entries, entryID)
	if target == nil {
		return false, nil
	}

	ok, err := u.ui.Confirm(ctx, fmt.Sprintf("Remove %s from your cart?", productNameOf(*target)))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	n, err := u.entries.DeleteByID(ctx, target.ID)
	if err != nil {
		return false, u.persistence(ctx, "remove cart item", err)
	}

	u.ui.Notify(ctx, NoticeSuccess, fmt.Sprintf("%s removed from your cart", productNameOf(*target)))
	return n > 0, nil
}

// ClearCart は確認のうえカートを空にする。
func (u *CartUsecase) ClearCart(ctx context.Context, buyerID string) (bool, error) {
	if strings.TrimSpace(buyerID) == "" {
		return false, errNotAuthenticated()
	}

	ok, err := u.ui.Confirm(ctx, "Empty your cart?")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := u.clear(ctx, buyerID); err != nil {
		return false, err
	}

	u.ui.Notify(ctx, NoticeSuccess, "your cart is now empty")
	return true, nil
}

// 確認なしで全削除（チェックアウト後に使う）
func (u *CartUsecase) clear(ctx context.Context, buyerID string) error {
	if _, err := u.entries.DeleteByBuyer(ctx, buyerID); err != nil {
		return u.persistence(ctx, "clear cart", err)
	}
	return nil
}

// Snapshot はカートの明細（古い順）と小計、出品者情報を返す。
func (u *CartUsecase) Snapshot(ctx context.Context, buyerID string) (Snapshot, error) {
	if strings.TrimSpace(buyerID) == "" {
		return Snapshot{}, errNotAuthenticated()
	}

	entries, err := u.entries.ListByBuyer(ctx, buyerID)
	if err != nil {
		return Snapshot{}, u.persistence(ctx, "load cart", err)
	}

	return buildSnapshot(entries), nil
}

func buildSnapshot(entries []model.CartEntry) Snapshot {
	sorted := make([]model.CartEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	snap := Snapshot{
		State:    model.CartStateEmpty,
		Items:    make([]SnapshotItem, 0, len(sorted)),
		Subtotal: decimal.Zero,
	}

	for _, e := range sorted {
		item := SnapshotItem{
			ID:        e.ID,
			ProductID: e.ProductID,
			Quantity:  e.Quantity,
			LineTotal: e.LineTotal,
			CreatedAt: e.CreatedAt,
		}
		if p := e.Product; p != nil {
			item.Name = p.Name
			item.UnitPrice = p.UnitPrice
			item.Stock = availableStock(*p)
			item.ImageURL = p.ImageURL

			if snap.Seller == nil && p.Seller != nil {
				snap.Seller = &SellerInfo{
					SellerID:     p.Seller.SellerID,
					StoreName:    p.Seller.StoreName,
					ContactPhone: p.Seller.ContactPhone,
					Recommended:  p.Seller.Recommended,
				}
			}
		}

		snap.Items = append(snap.Items, item)
		snap.Subtotal = snap.Subtotal.Add(e.LineTotal)
	}

	if len(snap.Items) > 0 {
		snap.State = model.CartStatePopulated
	}
	return snap
}

func (u *CartUsecase) persistence(ctx context.Context, op string, err error) error {
	u.logger.ErrorContext(ctx, "cart persistence failure", slog.String("op", op), slog.Any("error", err))
	return errPersistence(op, err)
}

// 削除済み・非公開の商品は在庫0として扱う
func availableStock(p model.Product) int64 {
	if p.DeletedAt.Valid || !p.IsActive {
		return 0
	}
	return p.Stock
}

func findByProduct(entries []model.CartEntry, productID string) *model.CartEntry {
	for i := range entries {
		if entries[i].ProductID == productID {
			return &entries[i]
		}
	}
	return nil
}

func findByID(entries []model.CartEntry, entryID string) *model.CartEntry {
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i]
		}
	}
	return nil
}

func storeNameOf(e model.CartEntry) string {
	if e.Product == nil || e.Product.Seller == nil || strings.TrimSpace(e.Product.Seller.StoreName) == "" {
		return "another store"
	}
	return e.Product.Seller.StoreName
}

func productNameOf(e model.CartEntry) string {
	if e.Product == nil || e.Product.Name == "" {
		return "this item"
	}
	return e.Product.Name
}
