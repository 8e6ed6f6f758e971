package assistant

import (
	"context"
	"log/slog"

	"github.com/jinford/assist-rag/internal/core/conversation"
)

// HandoffHandler は担当者への引き継ぎを受け付けます。外部呼び出しは行いません
type HandoffHandler struct {
	threshold float64
	messages  Messages
	logger    *slog.Logger
}

var _ Handler = (*HandoffHandler)(nil)

// HandoffHandlerOption は HandoffHandler のオプション
type HandoffHandlerOption func(*HandoffHandler)

// WithHandoffLogger はロガーを設定します
func WithHandoffLogger(l *slog.Logger) HandoffHandlerOption {
	return func(h *HandoffHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHandoffMessages は定型文を設定します
func WithHandoffMessages(m Messages) HandoffHandlerOption {
	return func(h *HandoffHandler) {
		h.messages = m.withDefaults()
	}
}

// NewHandoffHandler は新しい HandoffHandler を作成します
func NewHandoffHandler(threshold float64, opts ...HandoffHandlerOption) *HandoffHandler {
	h := &HandoffHandler{
		threshold: threshold,
		messages:  DefaultMessages(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Escalates は確信度が閾値を超えて即時に引き継ぐかを返します。
// 不正な分類結果は後日対応として扱います
func (h *HandoffHandler) Escalates(t Turn) bool {
	if err := t.Intent.Validate(); err != nil {
		return false
	}
	return t.Intent.Confidence > h.threshold
}

// Handle は即時の引き継ぎか後日対応の受付を返します
func (h *HandoffHandler) Handle(ctx context.Context, t Turn) string {
	text := h.messages.Deferred
	escalate := h.Escalates(t)
	if escalate {
		text = h.messages.Escalation
	}

	h.logger.Info("担当者への引き継ぎを受け付けました",
		"stage", "handoff",
		"session", t.Session.ID,
		"confidence", t.Intent.Confidence,
		"escalate", escalate,
	)
	t.Session.Log.Append(conversation.AssistantReply(text))
	return text
}
