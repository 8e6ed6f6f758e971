package assistant

import (
	"context"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/intent"
)

// Router は意図の種別からハンドラーを選びます
type Router struct {
	knowledge Handler
	order     Handler
	handoff   Handler
}

// NewRouter は新しい Router を作成します
func NewRouter(knowledge, order, handoff Handler) *Router {
	return &Router{
		knowledge: knowledge,
		order:     order,
		handoff:   handoff,
	}
}

// Route は種別に対応する振り分け先とハンドラーを返します。
// 未知の種別は引き継ぎに振り分けます
func (r *Router) Route(t intent.Type) (Route, Handler) {
	switch t {
	case intent.TypeKnowledge:
		return RouteKnowledge, r.knowledge
	case intent.TypeOrder:
		return RouteOrder, r.order
	default:
		return RouteHandoff, r.handoff
	}
}

// Dispatch は発話と分類結果を会話ログに追加してからハンドラーに委譲します
func (r *Router) Dispatch(ctx context.Context, t Turn) (Route, string) {
	t.Session.Log.Append(conversation.UserUtterance(t.Message, t.Intent))

	route, h := r.Route(t.Intent.Type)
	return route, h.Handle(ctx, t)
}
