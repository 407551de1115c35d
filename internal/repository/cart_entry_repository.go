package repository

import (
	"context"

	"marketplace/internal/domain/model"

	"github.com/shopspring/decimal"
)

// CartEntryRepository はカート明細の永続化窓口（Persistence Gateway）。
// 単一出品者の制約はここでは守らない。usecase側で書き込み前にチェックする。
type CartEntryRepository interface {
	// 購入者の明細を created_at 昇順で返す。Product と Product.Seller を埋め込む。
	ListByBuyer(ctx context.Context, buyerID string) ([]model.CartEntry, error)
	Insert(ctx context.Context, entry model.CartEntry) (model.CartEntry, error)
	// 数量と小計を1回の書き込みで更新
	UpdateQuantity(ctx context.Context, entryID string, qty int64, lineTotal decimal.Decimal) (model.CartEntry, error)
	// 削除件数を返す（0件はエラーではない）
	DeleteByID(ctx context.Context, entryID string) (int64, error)
	DeleteByBuyer(ctx context.Context, buyerID string) (int64, error)
}
