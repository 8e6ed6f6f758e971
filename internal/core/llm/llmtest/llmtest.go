// Package llmtest はテスト用の言語モデル・埋め込みクライアントを提供します。
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/jinford/assist-rag/internal/core/llm"
)

// ErrScriptExhausted は用意した応答を使い切った場合のエラー
var ErrScriptExhausted = errors.New("llmtest: no scripted response left")

// Step はスクリプトの1応答
type Step struct {
	Response llm.ChatResponse
	Err      error
}

// ScriptedClient は用意した応答を順番に返す llm.Client
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.ChatRequest
}

var _ llm.Client = (*ScriptedClient)(nil)

// NewScriptedClient は新しい ScriptedClient を作成します
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Reply はテキスト応答のステップを作成します
func Reply(content string) Step {
	return Step{Response: llm.ChatResponse{Content: content, FinishReason: "stop"}}
}

// Calls はツール呼び出し応答のステップを作成します
func Calls(calls ...llm.ToolCall) Step {
	return Step{Response: llm.ChatResponse{ToolCalls: calls, FinishReason: "tool_calls"}}
}

// Fail はエラー応答のステップを作成します
func Fail(err error) Step {
	return Step{Err: err}
}

// Chat は次のスクリプト応答を返します
func (c *ScriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, cloneRequest(req))
	if len(c.steps) == 0 {
		return llm.ChatResponse{}, ErrScriptExhausted
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	return step.Response, step.Err
}

// Requests は受け取ったリクエストを返します
func (c *ScriptedClient) Requests() []llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ChatRequest(nil), c.requests...)
}

// CallCount は呼び出し回数を返します
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func cloneRequest(req llm.ChatRequest) llm.ChatRequest {
	req.Messages = append([]llm.ChatMessage(nil), req.Messages...)
	req.Tools = append([]llm.ToolSchema(nil), req.Tools...)
	req.Documents = append([]string(nil), req.Documents...)
	return req
}

// HashEmbedder は単語の出現をハッシュで次元に割り当てる決定的な llm.Embedder。
// 同じ単語集合のテキストは同じベクトルになります
type HashEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

var _ llm.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder は新しい HashEmbedder を作成します
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// FailWith は以降の呼び出しで err を返すようにします
func (e *HashEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Hold は Release が呼ばれるまで Embed をブロックさせます
func (e *HashEmbedder) Hold() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = make(chan struct{})
}

// Release は Hold で止めた呼び出しを再開させます
func (e *HashEmbedder) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gate != nil {
		close(e.gate)
		e.gate = nil
	}
}

// Embed はテキストの決定的な正規化済みベクトルを返します
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	gate := e.gate
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(e.dim))]++
	}
	if len(words) == 0 {
		vec[0] = 1
	}
	return llm.Normalize(vec)
}

// Dimension は次元数を返します
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// CallCount は Embed の呼び出し回数を返します
func (e *HashEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
