package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/platform/logger"
	"github.com/jinford/assist-rag/internal/platform/retry"
)

// CheckOrderStatusTool は注文状況を参照するツールの名前
const CheckOrderStatusTool = "check_order_status"

// CheckOrderStatusSchema はモデルに公開するツール定義を返します
func CheckOrderStatusSchema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        CheckOrderStatusTool,
		Description: "注文IDから注文の状況・商品・購入者・注文日を確認します",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"orderId": map[string]any{
					"type":        "string",
					"description": "確認する注文のID",
				},
			},
			"required": []string{"orderId"},
		},
	}
}

// orderState はツール呼び出しの進行状態
type orderState interface {
	orderState()
}

// requestingTools は1回目の問い合わせ前
type requestingTools struct {
	messages []llm.ChatMessage
}

// executingTools はモデルが要求したツールの実行前
type executingTools struct {
	messages []llm.ChatMessage
	reply    llm.ChatResponse
}

// summarizing はツール結果を渡した2回目の問い合わせ前
type summarizing struct {
	messages []llm.ChatMessage
}

type answered struct {
	text string
}

type failed struct {
	stage string
	err   error
}

func (requestingTools) orderState() {}
func (executingTools) orderState()  {}
func (summarizing) orderState()     {}
func (answered) orderState()        {}
func (failed) orderState()          {}

// OrderHandler は注文参照ツールを使った2往復の問い合わせで回答します
type OrderHandler struct {
	client   llm.Client
	orders   order.Repository
	profile  Profile
	messages Messages
	lookup   retry.Policy
	logger   *slog.Logger
}

var _ Handler = (*OrderHandler)(nil)

// OrderHandlerOption は OrderHandler のオプション
type OrderHandlerOption func(*OrderHandler)

// WithOrderLogger はロガーを設定します
func WithOrderLogger(l *slog.Logger) OrderHandlerOption {
	return func(h *OrderHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithOrderMessages は定型文を設定します
func WithOrderMessages(m Messages) OrderHandlerOption {
	return func(h *OrderHandler) {
		h.messages = m.withDefaults()
	}
}

// WithLookupPolicy は注文参照の再試行ポリシーを設定します
func WithLookupPolicy(p retry.Policy) OrderHandlerOption {
	return func(h *OrderHandler) {
		h.lookup = p
	}
}

// NewOrderHandler は新しい OrderHandler を作成します
func NewOrderHandler(client llm.Client, orders order.Repository, profile Profile, opts ...OrderHandlerOption) *OrderHandler {
	h := &OrderHandler{
		client:   client,
		orders:   orders,
		profile:  profile,
		messages: DefaultMessages(),
		lookup:   retry.DefaultPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle はツール呼び出しの状態を終端まで進めます。
// 途中で失敗した場合は定型文を返し、それまでに追加したツール結果は会話ログに残ります
func (h *OrderHandler) Handle(ctx context.Context, t Turn) string {
	var state orderState = requestingTools{
		messages: []llm.ChatMessage{
			llm.SystemMessage(h.profile.Description),
			llm.UserMessage(t.Message),
		},
	}

	for {
		switch s := state.(type) {
		case requestingTools:
			state = h.requestTools(ctx, s)
		case executingTools:
			state = h.executeTools(ctx, t, s)
		case summarizing:
			state = h.summarize(ctx, s)
		case answered:
			t.Session.Log.Append(conversation.AssistantReply(s.text))
			return s.text
		case failed:
			h.logger.Warn("注文の問い合わせに失敗しました",
				"stage", s.stage,
				"session", t.Session.ID,
				"input", logger.Truncate(t.Message, logger.DefaultTruncateLength),
				"error", s.err,
			)
			t.Session.Log.Append(conversation.AssistantReply(h.messages.OrderUnavailable))
			return h.messages.OrderUnavailable
		default:
			panic(fmt.Sprintf("unknown order state %T", s))
		}
	}
}

func (h *OrderHandler) requestTools(ctx context.Context, s requestingTools) orderState {
	resp, err := h.client.Chat(ctx, llm.ChatRequest{
		Messages:   s.messages,
		Tools:      []llm.ToolSchema{CheckOrderStatusSchema()},
		ToolChoice: llm.ToolChoiceAuto,
	})
	if err != nil {
		return failed{stage: "tool_request", err: err}
	}
	if !resp.HasToolCalls() {
		if strings.TrimSpace(resp.Content) == "" {
			return failed{stage: "tool_request", err: llm.ErrEmptyResponse}
		}
		return answered{text: resp.Content}
	}
	return executingTools{messages: s.messages, reply: resp}
}

func (h *OrderHandler) executeTools(ctx context.Context, t Turn, s executingTools) orderState {
	calls := s.reply.ToolCalls
	t.Session.Log.Append(conversation.ToolCallRequest(s.reply.Content, calls))

	messages := append(append([]llm.ChatMessage(nil), s.messages...), llm.AssistantMessage(s.reply.Content, calls...))
	for _, call := range calls {
		result, err := h.invoke(ctx, call)
		if err != nil {
			return failed{stage: "tool_execute", err: err}
		}
		t.Session.Log.Append(conversation.ToolResult(call.ID, result))
		messages = append(messages, llm.ToolResultMessage(call.ID, result))
	}
	return summarizing{messages: messages}
}

func (h *OrderHandler) summarize(ctx context.Context, s summarizing) orderState {
	resp, err := h.client.Chat(ctx, llm.ChatRequest{
		Messages:   s.messages,
		Tools:      []llm.ToolSchema{CheckOrderStatusSchema()},
		ToolChoice: llm.ToolChoiceNone,
	})
	if err != nil {
		return failed{stage: "tool_summarize", err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return failed{stage: "tool_summarize", err: llm.ErrEmptyResponse}
	}
	return answered{text: resp.Content}
}

// invoke はツールを実行し、結果のJSONを返します。
// 注文が存在しない場合はエラーではなく結果として返します
func (h *OrderHandler) invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	if call.Name != CheckOrderStatusTool {
		return "", fmt.Errorf("%w: unknown tool %q", ErrToolInvocation, call.Name)
	}
	orderID, err := ParseOrderArguments(call.Arguments)
	if err != nil {
		return "", err
	}

	var found *order.Record
	err = retry.Do(ctx, h.lookup, func(ctx context.Context) error {
		rec, err := h.orders.Find(ctx, orderID)
		if err != nil {
			return err
		}
		found = rec.OrElse(nil)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up order %s: %w", orderID, err)
	}

	var payload any = map[string]string{"error": fmt.Sprintf("注文が見つかりません %s", orderID)}
	if found != nil {
		payload = found
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(b), nil
}

// ParseOrderArguments はツール引数 {"orderId": "..."} から注文IDを取り出します
func ParseOrderArguments(arguments string) (string, error) {
	var args struct {
		OrderID *string `json:"orderId"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(arguments)))
	if err := dec.Decode(&args); err != nil {
		return "", fmt.Errorf("%w: malformed arguments: %w", ErrToolInvocation, err)
	}
	if dec.More() {
		return "", fmt.Errorf("%w: trailing data after arguments", ErrToolInvocation)
	}
	if args.OrderID == nil || strings.TrimSpace(*args.OrderID) == "" {
		return "", fmt.Errorf("%w: orderId is required", ErrToolInvocation)
	}
	return strings.TrimSpace(*args.OrderID), nil
}
