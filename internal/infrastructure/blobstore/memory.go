// Package blobstore holds the object storage backends for listing images.
package blobstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key has no object.
var ErrNotFound = errors.New("blob not found")

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps blobs in process memory. URLs point at BaseURL + "/blobs/" + key,
// which the router serves while this backend is active.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Data: cp}
	m.mu.Unlock()
	return m.BaseURL + "/blobs/" + key, nil
}

// Delete removes key. Deleting a missing key is not an error, matching the hosted backends.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// Keys lists stored keys with the given prefix.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Name() string { return "memory" }
