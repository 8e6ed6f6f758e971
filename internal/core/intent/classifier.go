package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/mo"

	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/platform/logger"
)

// Classifier は言語モデルを使って発話の意図を分類します
type Classifier struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// ClassifierOption は Classifier のオプション
type ClassifierOption func(*Classifier)

// WithClassifierLogger はロガーを設定します
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClassifierModel は分類に使うモデル名を設定します
func WithClassifierModel(model string) ClassifierOption {
	return func(c *Classifier) {
		c.model = model
	}
}

// NewClassifier は新しい Classifier を作成します
func NewClassifier(client llm.Client, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify は発話を分類します。
// モデル呼び出しの失敗は llm.ErrLanguageModelService、応答の解釈失敗は ErrParse を返します
func (c *Classifier) Classify(ctx context.Context, description, message string) (Result, error) {
	req := llm.ChatRequest{
		Model: c.model,
		Messages: []llm.ChatMessage{
			llm.SystemMessage(BuildSystemPrompt(description)),
			llm.UserMessage(message),
		},
		Temperature:  mo.Some(Temperature),
		JSONResponse: true,
	}

	resp, err := c.client.Chat(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to classify intent: %w", err)
	}

	result, err := Parse(resp.Content)
	if err != nil {
		c.logger.Warn("意図分類の応答を解釈できませんでした",
			"stage", "classify",
			"response", logger.Truncate(resp.Content, logger.DefaultTruncateLength),
			"error", err,
		)
		return Result{}, err
	}
	return result, nil
}

type rawResult struct {
	IntentType *string  `json:"intentType"`
	Confidence *float64 `json:"confidence"`
}

// Parse はモデルの応答を厳密に解釈します。
// 単一のJSONオブジェクトで、intentType と confidence が揃い、値が有効な場合のみ成功します
func Parse(content string) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace([]byte(content))))

	var raw rawResult
	if err := dec.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("%w: invalid JSON: %w", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("%w: unexpected trailing data", ErrParse)
	}

	if raw.IntentType == nil {
		return Result{}, fmt.Errorf("%w: missing intentType", ErrParse)
	}
	if raw.Confidence == nil {
		return Result{}, fmt.Errorf("%w: missing confidence", ErrParse)
	}

	result := Result{Type: Type(*raw.IntentType), Confidence: *raw.Confidence}
	if err := result.Validate(); err != nil {
		return Result{}, err
	}
	return result, nil
}
