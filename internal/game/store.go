package game

import (
	"sort"
	"sync"

	apperrors "github.com/wfunc/guess-game/internal/errors"
)

// Store 会话存储
type Store interface {
	Get(sessionID string) (*Session, bool)
	Insert(session *Session) error
	IDs() []string
}

// MemoryStore 内存会话存储
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Get 查找会话
func (m *MemoryStore) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Insert 插入会话，ID 已存在时返回 ErrSessionExists
func (m *MemoryStore) Insert(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return apperrors.Newf(apperrors.ErrSessionExists, "session_id: %s", session.ID)
	}
	m.sessions[session.ID] = session
	return nil
}

// IDs 返回所有会话ID（已排序）
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
