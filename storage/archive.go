package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
)

var ErrObjectNotFound = errors.New("object not found")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// ArchiveStore persists competition snapshots in object storage.
type ArchiveStore interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// publicURL joins a base URL and an object key.
func publicURL(base, key string) string {
	if base == "" || key == "" {
		return ""
	}
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return ""
	}
	keyURL, err := url.Parse(strings.TrimPrefix(key, "/"))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(keyURL).String()
}

// MemoryArchive keeps objects in process, for the memory storage driver and tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewMemoryArchive(baseURL string) *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte), baseURL: baseURL}
}

func (a *MemoryArchive) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.objects[key] = body
	a.mu.Unlock()
	return &UploadResult{Key: key, Location: a.GetPublicURL(key)}, nil
}

func (a *MemoryArchive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(a.objects, key)
	return nil
}

func (a *MemoryArchive) GetPublicURL(key string) string {
	return publicURL(a.baseURL, key)
}

// Object returns a stored object's body.
func (a *MemoryArchive) Object(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.objects[key]
	return b, ok
}
