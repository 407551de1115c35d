package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの外から見える状態
type CartState string

const (
	CartStateEmpty     CartState = "EMPTY"
	CartStatePopulated CartState = "POPULATED"
)

// CartEntry はカートの明細（1購入者 x 1商品）。
// LineTotal は表示用の冗長値。価格の正はProduct.UnitPrice。
type CartEntry struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerID   string          `gorm:"type:uuid;not null;index;uniqueIndex:idx_cart_buyer_product" json:"buyer_id"`
	ProductID string          `gorm:"type:uuid;not null;index;uniqueIndex:idx_cart_buyer_product" json:"product_id"`
	Quantity  int64           `gorm:"not null;check:quantity >= 1" json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"line_total"`
	CreatedAt time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`

	// products を埋め込みで取得（Preload）
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartEntry) TableName() string { return "cart_items" }

// 数量 x 単価
func LineTotalOf(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(qty))
}

// 明細の商品の出品者ID（未取得なら空）
func (e CartEntry) SellerID() string {
	if e.Product == nil {
		return ""
	}
	return e.Product.SellerID
}
