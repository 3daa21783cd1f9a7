package guard

import "sync"

// Storage keys, matching the query parameters the issuer emits.
const (
	KeyToken     = "token"
	KeyTS        = "ts"
	KeyIdentity  = "u"
	KeyValidity  = "exp"
	KeyAccessKey = "accessKey"
)

// Storage is session-scoped key/value storage. Its contents live as long
// as one browsing session and are never written anywhere durable.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Clear()
}

// MemoryStorage implements Storage with a map.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty session storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}
