package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	repo "marketplace/internal/repository"
)

type storedImage struct {
	ContentType string
	Data        []byte
}

// Images はメモリ上の画像置き場
type Images struct {
	mu      sync.Mutex
	objects map[string]storedImage
	// Upload/Remove を失敗させる
	UploadErr error
	RemoveErr error
}

func NewImages() *Images {
	return &Images{objects: map[string]storedImage{}}
}

var _ repo.ImageStorage = (*Images)(nil)

func (m *Images) Upload(_ context.Context, objectName string, contentType string, r io.Reader) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = storedImage{ContentType: contentType, Data: buf.Bytes()}
	return nil
}

func (m *Images) PublicURL(objectName string) string {
	return fmt.Sprintf("https://images.test/%s", objectName)
}

func (m *Images) Remove(_ context.Context, objectName string) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *Images) Has(objectName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectName]
	return ok
}

func (m *Images) ContentType(objectName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[objectName].ContentType
}

func (m *Images) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
