package api

import (
	"sync"

	"github.com/davidahmann/foundry/pkg/types"
)

// InMemoryIdemStore replays a completed envelope for a repeated
// X-Idempotency-Key so caller retries cannot produce duplicate
// transfers. Entries live for the process lifetime; nothing is
// persisted.
type InMemoryIdemStore struct {
	mu    sync.Mutex
	items map[string]types.ResponseEnvelope
}

func NewInMemoryIdemStore() *InMemoryIdemStore {
	return &InMemoryIdemStore{items: make(map[string]types.ResponseEnvelope)}
}

func (s *InMemoryIdemStore) Get(key string) (types.ResponseEnvelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.items[key]
	return env, ok
}

func (s *InMemoryIdemStore) Put(key string, env types.ResponseEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = env
}
