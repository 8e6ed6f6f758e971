// Package openai は OpenAI 互換 API を使った llm.Client / llm.Embedder の実装を提供します。
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/platform/retry"
)

const (
	// DefaultModel はデフォルトで使用するチャットモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature はリクエストで指定が無い場合の温度
	DefaultTemperature = 0.7
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")
)

type clientOptions struct {
	baseURL     string
	model       string
	temperature float64
	policy      retry.Policy
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption は Client / Embedder 共通のオプション
type ClientOption func(*clientOptions)

// WithBaseURL は OpenAI 互換エンドポイントのURLを設定します
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithModel はチャットモデル名を設定します
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTemperature はデフォルトの温度を設定します
func WithTemperature(t float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = t
	}
}

// WithRetryPolicy はタイムアウトと再試行のポリシーを設定します
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(o *clientOptions) {
		o.policy = p
	}
}

// WithHTTPClient は HTTP クライアントを差し替えます
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithLogger はロガーを設定します
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		policy:      retry.DefaultPolicy(),
		logger:      slog.Default(),
	}
}

func (o clientOptions) requestOptions(apiKey string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// 再試行は retry.Policy で行う
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(o.httpClient))
	}
	return opts
}

// Client は OpenAI 互換 API を使用したチャットクライアント
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	policy      retry.Policy
	logger      *slog.Logger
}

var _ llm.Client = (*Client)(nil)

// NewClient は新しい Client を作成します
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		client:      openai.NewClient(o.requestOptions(apiKey)...),
		model:       o.model,
		temperature: o.temperature,
		policy:      o.policy,
		logger:      o.logger,
	}, nil
}

// ModelName はモデル名を返します
func (c *Client) ModelName() string {
	return c.model
}

// Chat はチャット補完を実行します。
// レート制限・サーバーエラー・タイムアウトはポリシーに従って再試行し、
// 失敗は llm.ErrLanguageModelService でラップして返します
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	params := c.buildParams(req)

	var completion *openai.ChatCompletion
	err := retry.DoNotify(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		completion = resp
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		c.logger.Warn("チャットAPIの呼び出しに失敗しました。再試行します",
			"stage", "chat",
			"model", string(params.Model),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("%w: %w", llm.ErrLanguageModelService, err)
	}

	if len(completion.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("%w: no completion choices returned", llm.ErrLanguageModelService)
	}

	choice := completion.Choices[0]
	resp := llm.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != "" && tc.Type != "function" {
			continue
		}
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

func (c *Client) buildParams(req llm.ChatRequest) openai.ChatCompletionNewParams {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	messages := llm.StuffDocuments(req.Messages, req.Documents)
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    toMessageParams(messages),
		Temperature: openai.Float(req.Temperature.OrElse(c.temperature)),
	}

	if req.JSONResponse {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	if len(req.Tools) > 0 {
		for _, tool := range req.Tools {
			params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Parameters),
			}))
		}
		if req.ToolChoice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(string(req.ToolChoice)),
			}
		}
	}

	return params
}

func toMessageParams(messages []llm.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// isRetryable はレート制限・サーバーエラー・通信エラーを再試行対象と判定します
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
