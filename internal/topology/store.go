package topology

import (
	"context"
	"fmt"
	"sync"
)

// Store хранит деревья по идентификатору корня. Запись перезаписывается целиком.
type Store interface {
	Persist(ctx context.Context, t *Topology) error
	Load(ctx context.Context, rootID string) (*Topology, error)
	PurgeAll(ctx context.Context) error
}

// MemoryStore — Store в памяти процесса. Хранит закодированные записи,
// чтобы Load проходил тот же путь декодирования, что и у Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Persist сохраняет дерево.
func (s *MemoryStore) Persist(_ context.Context, t *Topology) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[t.RootID] = data
	s.mu.Unlock()
	return nil
}

// Load возвращает дерево или ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, rootID string) (*Topology, error) {
	s.mu.RLock()
	data, ok := s.records[rootID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rootID)
	}
	return Decode(data)
}

// PurgeAll удаляет все деревья.
func (s *MemoryStore) PurgeAll(_ context.Context) error {
	s.mu.Lock()
	clear(s.records)
	s.mu.Unlock()
	return nil
}

// PutRaw кладёт запись как есть, минуя кодирование.
func (s *MemoryStore) PutRaw(rootID string, data []byte) {
	s.mu.Lock()
	s.records[rootID] = append([]byte(nil), data...)
	s.mu.Unlock()
}

// Len — число сохранённых деревьев.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
