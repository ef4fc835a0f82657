package storage

import (
	"context"
	"sync"
)

// Memory keeps uploads in a map. Tests and local development use it.
type Memory struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string]*UploadObject
}

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: baseURL, objects: make(map[string]*UploadObject)}
}

func (m *Memory) Upload(_ context.Context, object *UploadObject) (*UploadResponse, error) {
	key := objectKey(object)
	m.mu.Lock()
	m.objects[key] = object
	m.mu.Unlock()
	return &UploadResponse{URL: m.BaseURL + "/" + key, Key: key}, nil
}

func (m *Memory) BulkUpload(ctx context.Context, objects []*UploadObject) ([]*UploadResponse, error) {
	out := make([]*UploadResponse, 0, len(objects))
	for _, o := range objects {
		resp, err := m.Upload(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (m *Memory) Get(key string) (*UploadObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
