package conversation

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log は追記専用の会話ログ。到着順を保持し、並べ替えや削除はしません
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog は空の会話ログを作成します
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append はメッセージを末尾に追加し、ID と作成時刻を補完したメッセージを返します
func (l *Log) Append(m Message) Message {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Sources = slices.Clone(m.Sources)
	m.RetrievedChunks = slices.Clone(m.RetrievedChunks)
	m.ToolCalls = slices.Clone(m.ToolCalls)
	if m.Intent != nil {
		r := *m.Intent
		m.Intent = &r
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now()
	}
	l.messages = append(l.messages, m)
	return m
}

// Messages はログ全体のコピーを返します
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.messages)
}

// Since は index 番目以降のメッセージのコピーを返します
func (l *Log) Since(index int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 {
		index = 0
	}
	if index >= len(l.messages) {
		return []Message{}
	}
	return slices.Clone(l.messages[index:])
}

// Len はメッセージ数を返します
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
