package repository

import (
	"context"
	"io"
)

// 商品画像のオブジェクトストレージ
type ImageStorage interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) error
	PublicURL(objectName string) string
	Remove(ctx context.Context, objectName string) error
}
