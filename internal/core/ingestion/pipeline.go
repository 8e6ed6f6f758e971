package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/search"
)

// DefaultEmbeddingWorkerCount は埋め込み生成の既定の並列数（I/O バウンド）
const DefaultEmbeddingWorkerCount = 4

// Result はインデックス構築の結果
type Result struct {
	Document string
	Index    *search.Index
	Chunks   []chunk.Chunk
	Duration time.Duration
}

// Builder はドキュメントからインデックスを構築します
type Builder interface {
	Build(ctx context.Context, doc Document, cfg chunk.Config) (*Result, error)
}

// Pipeline は decode → chunk → embed → index の順にインデックスを構築します
type Pipeline struct {
	embedder     llm.Embedder
	splitterOpts []chunk.Option
	embedWorkers int
	logger       *slog.Logger
}

var _ Builder = (*Pipeline)(nil)

// PipelineOption は Pipeline のオプション
type PipelineOption func(*Pipeline)

// WithPipelineLogger はロガーを設定します
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEmbeddingWorkers は埋め込み生成の並列数を設定します
func WithEmbeddingWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.embedWorkers = n
		}
	}
}

// WithSplitterOptions はチャンク分割器のオプションを設定します
func WithSplitterOptions(opts ...chunk.Option) PipelineOption {
	return func(p *Pipeline) {
		p.splitterOpts = append(p.splitterOpts, opts...)
	}
}

// NewPipeline は新しい Pipeline を作成します
func NewPipeline(embedder llm.Embedder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		embedder:     embedder,
		embedWorkers: DefaultEmbeddingWorkerCount,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build はドキュメントから新しいインデックスを構築します。
// 設定の検証はドキュメントの処理より前に行います
func (p *Pipeline) Build(ctx context.Context, doc Document, cfg chunk.Config) (*Result, error) {
	start := time.Now()

	// 1. 設定の検証
	splitter, err := chunk.NewSplitter(cfg, p.splitterOpts...)
	if err != nil {
		return nil, err
	}

	// 2. デコード
	text, err := doc.Decode()
	if err != nil {
		return nil, err
	}

	// 3. チャンク分割
	chunks := splitter.Split(text)

	// 4. 埋め込み生成
	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		p.logger.Error("埋め込みの生成に失敗しました",
			"stage", "index",
			"document", doc.Name,
			"chunks", len(chunks),
			"error", err,
		)
		return nil, err
	}

	// 5. インデックス構築
	entries := make([]search.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = search.Entry{Chunk: c, Embedding: vectors[i]}
	}
	idx, err := search.NewIndex(p.embedder, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrEmbeddingService, err)
	}

	result := &Result{
		Document: doc.Name,
		Index:    idx,
		Chunks:   chunks,
		Duration: time.Since(start),
	}
	p.logger.Info("インデックスを構築しました",
		"document", doc.Name,
		"chunks", len(chunks),
		"chunkSize", cfg.ChunkSize,
		"chunkOverlap", cfg.ChunkOverlap,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) embedAll(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedWorkers)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("%w: chunk %d: %w", llm.ErrEmbeddingService, i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
