package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/llm/llmtest"
)

func TestKnowledgeBase_EmptyUntilFirstBuild(t *testing.T) {
	kb := NewKnowledgeBase(NewPipeline(llmtest.NewHashEmbedder(16)))

	assert.True(t, kb.Current().IsAbsent())
	assert.Equal(t, BuildStateIdle, kb.Status().State)
}

func TestKnowledgeBase_RebuildPublishesSnapshot(t *testing.T) {
	kb := NewKnowledgeBase(NewPipeline(llmtest.NewHashEmbedder(64)))

	snap, err := kb.Rebuild(context.Background(), Document{Name: "faq.txt", Content: []byte(faqDocument)},
		chunk.Config{ChunkSize: 60, ChunkOverlap: 10})
	require.NoError(t, err)

	current, ok := kb.Current().Get()
	require.True(t, ok)
	assert.Same(t, snap, current)
	assert.Equal(t, "faq.txt", current.Document)
	assert.Equal(t, 60, current.Config.ChunkSize)

	status := kb.Status()
	assert.Equal(t, BuildStateReady, status.State)
	assert.Equal(t, len(snap.Chunks), status.Chunks)
}

func TestKnowledgeBase_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(64)
	kb := NewKnowledgeBase(NewPipeline(embedder))

	first, err := kb.Rebuild(context.Background(), Document{Name: "v1.txt", Content: []byte(faqDocument)}, chunk.DefaultConfig())
	require.NoError(t, err)

	embedder.FailWith(errors.New("quota exceeded"))
	_, err = kb.Rebuild(context.Background(), Document{Name: "v2.txt", Content: []byte("new text")}, chunk.DefaultConfig())
	require.Error(t, err)

	current, ok := kb.Current().Get()
	require.True(t, ok)
	assert.Same(t, first, current)

	status := kb.Status()
	assert.Equal(t, BuildStateFailed, status.State)
	assert.Equal(t, "v2.txt", status.Document)
	assert.Contains(t, status.LastError, "quota exceeded")
}

func TestKnowledgeBase_ReadersSeePreviousIndexWhileBuilding(t *testing.T) {
	embedder := llmtest.NewHashEmbedder(64)
	kb := NewKnowledgeBase(NewPipeline(embedder))

	first, err := kb.Rebuild(context.Background(), Document{Name: "v1.txt", Content: []byte(faqDocument)}, chunk.DefaultConfig())
	require.NoError(t, err)

	embedder.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := kb.Rebuild(context.Background(), Document{Name: "v2.txt", Content: []byte("gift wrapping is available")}, chunk.DefaultConfig())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return kb.Status().State == BuildStateBuilding
	}, time.Second, 5*time.Millisecond)

	current, ok := kb.Current().Get()
	require.True(t, ok)
	assert.Same(t, first, current)

	embedder.Release()
	require.NoError(t, <-done)

	current, ok = kb.Current().Get()
	require.True(t, ok)
	assert.Equal(t, "v2.txt", current.Document)
}

type countingBuilder struct {
	active    atomic.Int32
	maxActive atomic.Int32
	builds    atomic.Int32
}

func (b *countingBuilder) Build(ctx context.Context, doc Document, cfg chunk.Config) (*Result, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		peak := b.maxActive.Load()
		if n <= peak || b.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	b.builds.Add(1)
	return &Result{Document: doc.Name}, nil
}

func TestKnowledgeBase_RebuildsAreSerialized(t *testing.T) {
	builder := &countingBuilder{}
	kb := NewKnowledgeBase(builder)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := kb.Rebuild(context.Background(), Document{Name: "doc"}, chunk.DefaultConfig())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8, builder.builds.Load())
	assert.EqualValues(t, 1, builder.maxActive.Load())
}
