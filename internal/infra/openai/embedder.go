package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/platform/retry"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
)

// Embedder は OpenAI 互換 API を使用してテキストを正規化済みベクトルに変換します
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	options   clientOptions
}

var _ llm.Embedder = (*Embedder)(nil)

type embedderOptions struct {
	model      string
	dimension  int
	clientOpts []ClientOption
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithEmbedderClientOptions は接続先・再試行・ロガーなどの共通オプションを設定する
func WithEmbedderClientOptions(opts ...ClientOption) EmbedderOption {
	return func(o *embedderOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}
	co := defaultClientOptions()
	for _, opt := range options.clientOpts {
		opt(&co)
	}

	return &Embedder{
		client:    openai.NewClient(co.requestOptions(apiKey)...),
		model:     options.model,
		dimension: options.dimension,
		options:   co,
	}, nil
}

// Embed は単一テキストの埋め込みを生成し、L2ノルム1に正規化して返します
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	var resp *openai.CreateEmbeddingResponse
	err := retry.DoNotify(ctx, e.options.policy, func(ctx context.Context) error {
		r, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		e.options.logger.Warn("埋め込みAPIの呼び出しに失敗しました。再試行します",
			"stage", "embed",
			"model", e.model,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate embedding: %w", llm.ErrEmbeddingService, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings generated", llm.ErrEmbeddingService)
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}

	normalized, err := llm.Normalize(vector)
	if errors.Is(err, llm.ErrZeroVector) {
		return nil, fmt.Errorf("%w: %w", llm.ErrEmbeddingService, err)
	}
	return normalized, err
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}
