package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID    string          `gorm:"type:uuid;not null;index" json:"seller_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Stock       int64           `gorm:"not null" json:"stock"`
	// 公開URLとオブジェクト名（削除用）
	ImageURL    string         `gorm:"type:text" json:"image_url"`
	ImageObject string         `gorm:"type:text" json:"-"`
	IsActive    bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Seller *SellerProfile `gorm:"foreignKey:SellerID;references:SellerID" json:"seller,omitempty"`
}
