package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// Memory — Store в памяти. Бакет существует, если создан через CreateBucket или Put.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string][]byte)}
}

// CreateBucket создаёт пустой бакет.
func (m *Memory) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
}

// Put кладёт объект, создавая бакет при необходимости.
func (m *Memory) Put(bucket, key string, data []byte) {
	m.CreateBucket(bucket)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket][key] = append([]byte(nil), data...)
}

func (m *Memory) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *Memory) ListTables(_ context.Context, bucket string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	var out []string
	for _, key := range slices.Sorted(maps.Keys(objects)) {
		if IsTable(key) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (m *Memory) TableExists(_ context.Context, bucket, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return false, nil
	}
	_, ok = objects[path]
	return ok, nil
}

func (m *Memory) Open(_ context.Context, bucket, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.buckets[bucket][path]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
