// Package llm は外部の言語モデル・埋め込みサービスへの共通インターフェースを定義します。
package llm

import (
	"context"

	"github.com/samber/mo"
)

// Role はチャットメッセージの送信者ロール
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoice はツール呼び出しの選択方針
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// ToolCall はモデルが要求したツール呼び出し
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON文字列
}

// ChatMessage はモデルに送るメッセージ
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCallID string     // Role が tool の場合に対応する呼び出しID
	ToolCalls  []ToolCall // Role が assistant でツール呼び出しを含む場合
}

// ToolSchema はモデルに公開するツールの定義
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ChatRequest はチャット補完リクエスト
type ChatRequest struct {
	Model        string // 空の場合はクライアントのデフォルト
	Messages     []ChatMessage
	Tools        []ToolSchema
	ToolChoice   ToolChoice
	Temperature  mo.Option[float64]
	JSONResponse bool
	// Documents が空でない場合、文書に基づく回答（stuff 方式）として送信されます
	Documents []string
}

// ChatResponse はチャット補完レスポンス
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// HasToolCalls はツール呼び出しを含むかどうかを返します
func (r ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Client はチャット補完を行うクライアント
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Embedder はテキストを埋め込みベクトルへ変換します
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// SystemMessage はシステムメッセージを作成します
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage はユーザーメッセージを作成します
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage はアシスタントメッセージを作成します
func AssistantMessage(content string, calls ...ToolCall) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage はツール実行結果のメッセージを作成します
func ToolResultMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
