package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"marketplace/internal/repository"
)

const defaultPublicBase = "https://storage.googleapis.com"

// GCSImageStorage は商品画像をGCSに置く。
type GCSImageStorage struct {
	client     *gcs.Client
	bucket     string
	publicBase string
}

var _ repository.ImageStorage = (*GCSImageStorage)(nil)

// NewGCSClient はGCSクライアントを作る。credentialsFile が空ならADC。
func NewGCSClient(ctx context.Context, credentialsFile string) (*gcs.Client, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient failed: %w", err)
	}
	return c, nil
}

// publicBase が空なら https://storage.googleapis.com/<bucket>
func NewGCSImageStorage(client *gcs.Client, bucket string, publicBase string) (*GCSImageStorage, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs bucket is empty")
	}
	return &GCSImageStorage{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(publicBase), "/"),
	}, nil
}

func (s *GCSImageStorage) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) error {
	object := strings.TrimLeft(strings.TrimSpace(objectName), "/")
	if object == "" {
		return errors.New("object is empty")
	}

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object bucket=%s object=%s: %w", s.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer bucket=%s object=%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *GCSImageStorage) PublicURL(objectName string) string {
	return PublicURL(s.publicBase, s.bucket, objectName)
}

// 無いオブジェクトの削除は成功扱い
func (s *GCSImageStorage) Remove(ctx context.Context, objectName string) error {
	object := strings.TrimLeft(strings.TrimSpace(objectName), "/")
	if object == "" {
		return nil
	}

	err := s.client.Bucket(s.bucket).Object(object).Delete(ctx)
	if err == nil || errors.Is(err, gcs.ErrObjectNotExist) || isNotFound(err) {
		return nil
	}
	return fmt.Errorf("delete object bucket=%s object=%s: %w", s.bucket, object, err)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// PublicURL は公開URLを組み立てる。
// base が空なら https://storage.googleapis.com/{bucket}/{object}
func PublicURL(base, bucket, objectName string) string {
	object := strings.TrimLeft(strings.TrimSpace(objectName), "/")
	if base == "" {
		return defaultPublicBase + "/" + bucket + "/" + object
	}
	return base + "/" + object
}
