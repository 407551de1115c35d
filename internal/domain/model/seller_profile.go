package model

import "time"

// 出品者のお店情報。カート表示とチェックアウトの連絡先に使う。
type SellerProfile struct {
	SellerID     string    `gorm:"type:uuid;primaryKey" json:"seller_id"`
	StoreName    string    `gorm:"type:varchar(255);not null" json:"store_name"`
	ContactPhone string    `gorm:"type:varchar(32)" json:"contact_phone"`
	Recommended  bool      `gorm:"not null;default:false" json:"recommended"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
