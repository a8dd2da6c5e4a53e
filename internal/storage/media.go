package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when media storage cannot complete a call.
var ErrUnavailable = errors.New("media storage unavailable")

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Asset is a stored file: its public URL and the id used to remove it.
type Asset struct {
	URL         string
	ReferenceID string
}

// Media stores and removes user media. Store returns (nil, err) on failure;
// callers treat that as an upstream error.
type Media interface {
	Store(ctx context.Context, up Upload) (*Asset, error)
	Remove(ctx context.Context, referenceID string) error
}

// objectKey builds a collision-free key that keeps the upload's extension.
func objectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return prefix + uuid.NewString() + ext
}

// MemoryMedia keeps assets in memory. Used by tests and local runs without
// MinIO.
type MemoryMedia struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte

	// StoreErr and RemoveErr, when set, are returned by the next calls.
	StoreErr  error
	RemoveErr error
}

func NewMemoryMedia(baseURL string) *MemoryMedia {
	if baseURL == "" {
		baseURL = "memory://media/"
	}
	return &MemoryMedia{baseURL: baseURL, objects: map[string][]byte{}}
}

func (m *MemoryMedia) Store(ctx context.Context, up Upload) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	var data []byte
	if up.Body != nil {
		b, err := io.ReadAll(up.Body)
		if err != nil {
			return nil, err
		}
		data = b
	}
	key := objectKey("", up.Filename)
	m.objects[key] = data
	return &Asset{URL: m.baseURL + key, ReferenceID: key}, nil
}

func (m *MemoryMedia) Remove(ctx context.Context, referenceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.objects, referenceID)
	return nil
}

// Has reports whether referenceID is currently stored.
func (m *MemoryMedia) Has(referenceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[referenceID]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryMedia) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
