package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/search"
	"github.com/jinford/assist-rag/internal/platform/logger"
)

// KnowledgeHandler はセッションのナレッジベースを検索して回答します
type KnowledgeHandler struct {
	client   llm.Client
	profile  Profile
	messages Messages
	topK     int
	logger   *slog.Logger
}

var _ Handler = (*KnowledgeHandler)(nil)

// KnowledgeHandlerOption は KnowledgeHandler のオプション
type KnowledgeHandlerOption func(*KnowledgeHandler)

// WithKnowledgeLogger はロガーを設定します
func WithKnowledgeLogger(l *slog.Logger) KnowledgeHandlerOption {
	return func(h *KnowledgeHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTopK は検索件数を設定します
func WithTopK(k int) KnowledgeHandlerOption {
	return func(h *KnowledgeHandler) {
		if k > 0 {
			h.topK = k
		}
	}
}

// WithKnowledgeMessages は定型文を設定します
func WithKnowledgeMessages(m Messages) KnowledgeHandlerOption {
	return func(h *KnowledgeHandler) {
		h.messages = m.withDefaults()
	}
}

// NewKnowledgeHandler は新しい KnowledgeHandler を作成します
func NewKnowledgeHandler(client llm.Client, profile Profile, opts ...KnowledgeHandlerOption) *KnowledgeHandler {
	h := &KnowledgeHandler{
		client:   client,
		profile:  profile,
		messages: DefaultMessages(),
		topK:     search.DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle は検索したチャンクを文脈としてモデルに回答させます。
// インデックスが無い場合はモデルを呼ばずに未設定の旨を返します
func (h *KnowledgeHandler) Handle(ctx context.Context, t Turn) string {
	log := t.Session.Log
	reply := func(text string, sources ...string) string {
		log.Append(conversation.AssistantReply(text, sources...))
		return text
	}

	// 1. インデックスの確認
	if t.Session.Knowledge == nil {
		return reply(h.messages.KnowledgeNotConfigured)
	}
	snap, ok := t.Session.Knowledge.Current().Get()
	if !ok {
		return reply(h.messages.KnowledgeNotConfigured)
	}

	// 2. 類似チャンクの検索
	results, err := snap.Index.Query(ctx, t.Message, h.topK)
	if err != nil {
		if errors.Is(err, search.ErrUnavailable) {
			return reply(h.messages.KnowledgeNotConfigured)
		}
		h.logFailure("retrieve", t, err)
		return reply(h.messages.KnowledgeUnavailable)
	}

	sources, texts, retrieved := describeResults(results)
	if len(results) > 0 {
		log.Append(conversation.Retrieval(strings.Join(texts, "\n\n"), sources, retrieved))
	}

	// 3. 回答の生成
	resp, err := h.client.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(h.profile.Description),
			llm.UserMessage(t.Message),
		},
		Documents: texts,
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		h.logFailure("answer", t, err)
		return reply(h.messages.KnowledgeUnavailable)
	}

	h.logger.Debug("ナレッジから回答しました",
		"stage", "answer",
		"session", t.Session.ID,
		"chunks", len(results),
	)
	return reply(resp.Content, sources...)
}

func (h *KnowledgeHandler) logFailure(stage string, t Turn, err error) {
	h.logger.Warn("ナレッジ回答に失敗しました",
		"stage", stage,
		"session", t.Session.ID,
		"input", logger.Truncate(t.Message, logger.DefaultTruncateLength),
		"error", err,
	)
}

// describeResults は順位順の出典ラベル・本文・記録用チャンクを作ります
func describeResults(results []search.Result) (sources, texts []string, retrieved []conversation.RetrievedChunk) {
	for _, r := range results {
		sources = append(sources, fmt.Sprintf("chunk #%d", r.Rank))
		texts = append(texts, r.Chunk.Text)
		retrieved = append(retrieved, conversation.RetrievedChunk{
			Text: r.Chunk.Text,
			Metadata: map[string]string{
				"rank":   strconv.Itoa(r.Rank),
				"score":  strconv.FormatFloat(r.Score, 'f', 4, 64),
				"offset": strconv.Itoa(r.Chunk.SourceOffset),
			},
		})
	}
	return sources, texts, retrieved
}
