// Package conversation はセッションごとの追記専用の会話ログを提供します。
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/llm"
)

// Role はメッセージの送信者
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Kind はメッセージの用途
type Kind string

const (
	KindGreeting   Kind = "greeting"    // セッション開始時の挨拶
	KindUtterance  Kind = "utterance"   // ユーザー発話と分類結果
	KindRetrieval  Kind = "retrieval"   // 検索したチャンクの記録
	KindToolCall   Kind = "tool_call"   // モデルが要求したツール呼び出し
	KindToolResult Kind = "tool_result" // ツールの実行結果
	KindReply      Kind = "reply"       // アシスタントの回答
)

// RetrievedChunk は回答の根拠として検索されたチャンク
type RetrievedChunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message は会話ログの1エントリ
type Message struct {
	ID              uuid.UUID        `json:"id"`
	Role            Role             `json:"role"`
	Kind            Kind             `json:"kind"`
	Content         string           `json:"content"`
	Sources         []string         `json:"sources,omitempty"`
	RetrievedChunks []RetrievedChunk `json:"retrievedChunks,omitempty"`
	Intent          *intent.Result   `json:"intent,omitempty"`
	ToolCallID      string           `json:"toolCallId,omitempty"`
	ToolCalls       []llm.ToolCall   `json:"toolCalls,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// UserUtterance はユーザー発話と分類結果の記録を作成します
func UserUtterance(content string, result intent.Result) Message {
	return Message{Role: RoleUser, Kind: KindUtterance, Content: content, Intent: &result}
}

// AssistantReply はアシスタントの回答を作成します
func AssistantReply(content string, sources ...string) Message {
	return Message{Role: RoleAssistant, Kind: KindReply, Content: content, Sources: sources}
}

// Greeting はセッション開始時の挨拶を作成します
func Greeting(content string) Message {
	return Message{Role: RoleAssistant, Kind: KindGreeting, Content: content}
}

// Retrieval は検索結果の記録を作成します
func Retrieval(content string, sources []string, chunks []RetrievedChunk) Message {
	return Message{Role: RoleAssistant, Kind: KindRetrieval, Content: content, Sources: sources, RetrievedChunks: chunks}
}

// ToolCallRequest はモデルのツール呼び出し要求の記録を作成します
func ToolCallRequest(content string, calls []llm.ToolCall) Message {
	return Message{Role: RoleAssistant, Kind: KindToolCall, Content: content, ToolCalls: calls}
}

// ToolResult はツール実行結果を作成します
func ToolResult(toolCallID, content string) Message {
	return Message{Role: RoleTool, Kind: KindToolResult, Content: content, ToolCallID: toolCallID}
}
