// internal/service/purchase/infrastructure/session_memory.go
package infrastructure

import (
	"context"
	"sync"

	"lekker/internal/service/purchase/domain"
)

// MemorySessionStore 是进程内的会话存储，用于本地开发和测试。
// 为了和 Redis 存储行为一致，状态同样经过 JSON 封皮往返。
type MemorySessionStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{states: make(map[string][]byte)}
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (domain.SessionState, error) {
	s.mu.RLock()
	raw, ok := s.states[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.Idle{}, nil
	}
	return domain.UnmarshalSession(raw)
}

func (s *MemorySessionStore) Set(_ context.Context, sessionID string, state domain.SessionState) error {
	raw, err := domain.MarshalSession(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.states, sessionID)
	s.mu.Unlock()
	return nil
}
