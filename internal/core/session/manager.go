package session

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/ingestion"
)

// Manager はメモリ上でセッションを管理します
type Manager struct {
	builder ingestion.Builder
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// ManagerOption は Manager のオプション
type ManagerOption func(*Manager)

// WithManagerLogger はロガーを設定します
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager は新しい Manager を作成します。
// builder は各セッションのナレッジベース構築に使われます
func NewManager(builder ingestion.Builder, opts ...ManagerOption) *Manager {
	m := &Manager{
		builder:  builder,
		logger:   slog.Default(),
		sessions: make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create はセッションを作成し、挨拶を会話ログに追加します
func (m *Manager) Create(greeting string) *Session {
	kb := ingestion.NewKnowledgeBase(m.builder, ingestion.WithKnowledgeBaseLogger(m.logger))
	s := New(kb)
	if greeting != "" {
		s.Log.Append(conversation.Greeting(greeting))
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("セッションを作成しました", "session", s.ID)
	return s
}

// Get はセッションを取得します
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close はセッションをクローズして管理対象から外します
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	m.logger.Info("セッションをクローズしました", "session", id)
	return nil
}

// List は作成順のセッション一覧を返します
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// CloseAll はすべてのセッションをクローズします
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
