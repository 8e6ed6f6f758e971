package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/intent"
)

func namedHandler(name string) Handler {
	return HandlerFunc(func(ctx context.Context, t Turn) string { return name })
}

func TestRouter_Route(t *testing.T) {
	r := NewRouter(namedHandler("knowledge"), namedHandler("order"), namedHandler("handoff"))

	tests := []struct {
		intent intent.Type
		route  Route
	}{
		{intent.TypeKnowledge, RouteKnowledge},
		{intent.TypeOrder, RouteOrder},
		{intent.TypeOther, RouteHandoff},
		{intent.Type("refund"), RouteHandoff},
		{intent.Type(""), RouteHandoff},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			route, h := r.Route(tt.intent)
			assert.Equal(t, tt.route, route)
			assert.Equal(t, string(tt.route), h.Handle(context.Background(), Turn{}))
		})
	}
}

func TestRouter_DispatchRecordsUtteranceFirst(t *testing.T) {
	s := newSession(t)
	var seen conversation.Message
	order := HandlerFunc(func(ctx context.Context, t Turn) string {
		seen = lastMessage(t.Session)
		return "ok"
	})
	r := NewRouter(namedHandler("knowledge"), order, namedHandler("handoff"))

	result := intent.Result{Type: intent.TypeOrder, Confidence: 0.93}
	route, text := r.Dispatch(context.Background(), turn(s, "where is A1?", result))

	assert.Equal(t, RouteOrder, route)
	assert.Equal(t, "ok", text)
	assert.Equal(t, conversation.KindUtterance, seen.Kind)
	assert.Equal(t, conversation.RoleUser, seen.Role)
	assert.Equal(t, "where is A1?", seen.Content)
	require.NotNil(t, seen.Intent)
	assert.Equal(t, result, *seen.Intent)
}
