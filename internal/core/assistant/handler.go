package assistant

import (
	"context"
	"errors"

	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/session"
)

// ErrToolInvocation はツール呼び出しの名前や引数が不正な場合のエラー
var ErrToolInvocation = errors.New("tool invocation error")

// Route は振り分け先
type Route string

const (
	RouteKnowledge Route = "knowledge"
	RouteOrder     Route = "order"
	RouteHandoff   Route = "handoff"
)

// Turn は1回のユーザー発話の処理単位
type Turn struct {
	Session *session.Session
	Message string
	Intent  intent.Result
}

// Handler は振り分けられた発話に回答します。
// 失敗は定型文に置き換え、常に回答テキストを返します。
// 回答は会話ログにも追加されます
type Handler interface {
	Handle(ctx context.Context, t Turn) string
}

// HandlerFunc は関数を Handler として扱うアダプター
type HandlerFunc func(ctx context.Context, t Turn) string

// Handle は f(ctx, t) を呼びます
func (f HandlerFunc) Handle(ctx context.Context, t Turn) string {
	return f(ctx, t)
}
