package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/llm/llmtest"
)

var faqChunks = []string{
	"returns are accepted within fourteen days of delivery",
	"shipping is free for orders above five thousand yen",
	"we accept credit card and bank transfer payments",
	"support is available on weekdays from nine to five",
	"gift wrapping can be requested at checkout",
	"international shipping is not supported",
}

func buildIndex(t *testing.T, embedder *llmtest.HashEmbedder, texts []string) *Index {
	t.Helper()
	entries := make([]Entry, 0, len(texts))
	offset := 0
	for _, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		entries = append(entries, Entry{Chunk: chunk.Chunk{Text: text, SourceOffset: offset}, Embedding: vec})
		offset += len([]rune(text)) + 1
	}
	idx, err := NewIndex(embedder, entries)
	require.NoError(t, err)
	return idx
}

func TestIndex_QueryRanksVerbatimChunkFirst(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(256)
	idx := buildIndex(t, embedder, faqChunks)

	for _, target := range faqChunks {
		results, err := idx.Query(context.Background(), target, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, target, results[0].Chunk.Text)
		assert.Equal(t, 1, results[0].Rank)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
			assert.Equal(t, i+1, results[i].Rank)
		}
	}
}

func TestIndex_QueryUsesDefaultTopK(t *testing.T) {
	idx := buildIndex(t, llmtest.NewHashEmbedder(64), faqChunks)

	results, err := idx.Query(context.Background(), "shipping", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestIndex_QueryReturnsAtMostEntryCount(t *testing.T) {
	idx := buildIndex(t, llmtest.NewHashEmbedder(64), faqChunks[:2])

	results, err := idx.Query(context.Background(), "returns", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndex_EmptyIndexReturnsEmptyWithoutEmbedding(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(16)
	idx, err := NewIndex(embedder, nil)
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, embedder.CallCount())
}

func TestIndex_NilIndexIsUnavailable(t *testing.T) {
	var idx *Index
	_, err := idx.Query(context.Background(), "anything", 4)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, idx.Len())
}

func TestIndex_QueryWrapsEmbeddingFailure(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(16)
	idx := buildIndex(t, embedder, faqChunks)
	boom := errors.New("503 from embedding endpoint")
	embedder.FailWith(boom)

	_, err := idx.Query(context.Background(), "returns", 4)
	require.ErrorIs(t, err, llm.ErrEmbeddingService)
	assert.ErrorIs(t, err, boom)
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(16)
	vec := []float32{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	idx, err := NewIndex(embedder, []Entry{
		{Chunk: chunk.Chunk{Text: "first"}, Embedding: vec},
		{Chunk: chunk.Chunk{Text: "second"}, Embedding: vec},
		{Chunk: chunk.Chunk{Text: "third"}, Embedding: vec},
	})
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, "second", results[1].Chunk.Text)
	assert.Equal(t, "third", results[2].Chunk.Text)
}

func TestNewIndex_RejectsMixedDimensions(t *testing.T) {
	_, err := NewIndex(llmtest.NewHashEmbedder(2), []Entry{
		{Embedding: []float32{1, 0}},
		{Embedding: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewIndex_NormalizesEmbeddings(t *testing.T) {
	idx, err := NewIndex(llmtest.NewHashEmbedder(2), []Entry{{Embedding: []float32{3, 4}}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, llm.Dot(idx.entries[0].Embedding, idx.entries[0].Embedding), 1e-6)
}
