// Package session はセッションごとの会話ログ・ナレッジベース・ターン制御をまとめます。
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/ingestion"
)

var (
	// ErrNotFound はセッションが存在しない場合のエラー
	ErrNotFound = errors.New("session not found")
	// ErrClosed はクローズ済みのセッションを操作した場合のエラー
	ErrClosed = errors.New("session closed")
)

// Session は1つの会話の状態。各ハンドラーへ明示的に渡されます
type Session struct {
	ID        uuid.UUID
	Log       *conversation.Log
	Knowledge *ingestion.KnowledgeBase
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	turn   chan struct{}
}

// New は新しいセッションを作成します
func New(knowledge *ingestion.KnowledgeBase) *Session {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Session{
		ID:        uuid.New(),
		Log:       conversation.NewLog(),
		Knowledge: knowledge,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		turn:      make(chan struct{}, 1),
	}
}

// AcquireTurn はターンの実行権を取得します。
// 同時に実行できるターンはセッションごとに1つだけで、返された関数で解放します
func (s *Session) AcquireTurn(ctx context.Context) (release func(), err error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrClosed
	}
}

// TurnContext は呼び出し元のキャンセルかセッションのクローズで終了するターン用コンテキストを返します
func (s *Session) TurnContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(s.ctx, func() {
		cancel(ErrClosed)
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Context はセッションのクローズで終了するコンテキストを返します。
// ターンに属さないバックグラウンド処理（インデックス再構築など）に使います
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close はセッションをクローズし、実行中のターンをキャンセルします
func (s *Session) Close() {
	s.cancel(ErrClosed)
}

// Closed はクローズ済みかどうかを返します
func (s *Session) Closed() bool {
	return s.ctx.Err() != nil
}
