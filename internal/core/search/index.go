// Package search はメモリ上の類似度インデックスを提供します。
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jinford/assist-rag/internal/core/llm"
)

// Index は1つのドキュメントから構築された読み取り専用の類似度インデックス。
// 構築後は変更されないため、複数のゴルーチンから同時に Query できます
type Index struct {
	embedder  llm.Embedder
	entries   []Entry
	dimension int
}

// NewIndex はエントリからインデックスを作成します。埋め込みは正規化して保持します
func NewIndex(embedder llm.Embedder, entries []Entry) (*Index, error) {
	idx := &Index{
		embedder: embedder,
		entries:  make([]Entry, 0, len(entries)),
	}
	for i, e := range entries {
		if idx.dimension == 0 {
			idx.dimension = len(e.Embedding)
		}
		if len(e.Embedding) != idx.dimension {
			return nil, fmt.Errorf("%w: entry %d has %d, want %d", ErrDimensionMismatch, i, len(e.Embedding), idx.dimension)
		}
		vec, err := llm.Normalize(e.Embedding)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		idx.entries = append(idx.entries, Entry{Chunk: e.Chunk, Embedding: vec})
	}
	return idx, nil
}

// Len はエントリ数を返します
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Entries は格納順のエントリ一覧を返します
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.entries)
}

// Query はクエリに近いチャンクを類似度の高い順に最大 k 件返します。
// k が0以下の場合は DefaultTopK を使います。エントリが無い場合は埋め込みを呼ばずに空の結果を返します
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if idx == nil {
		return nil, ErrUnavailable
	}
	if len(idx.entries) == 0 {
		return []Result{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	raw, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", llm.ErrEmbeddingService, err)
	}
	if len(raw) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(raw), idx.dimension)
	}
	query, err := llm.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrEmbeddingService, err)
	}

	results := make([]Result, len(idx.entries))
	for i, e := range idx.entries {
		results[i] = Result{Chunk: e.Chunk, Score: llm.Dot(query, e.Embedding)}
	}
	// 同点の場合は格納順を保つ
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
