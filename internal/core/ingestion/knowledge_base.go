package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/search"
)

// BuildState はナレッジベースの構築状態
type BuildState string

const (
	BuildStateIdle     BuildState = "idle"
	BuildStateBuilding BuildState = "building"
	BuildStateReady    BuildState = "ready"
	BuildStateFailed   BuildState = "failed"
)

// Snapshot は公開済みのインデックスとその構築情報
type Snapshot struct {
	Document string
	Index    *search.Index
	Chunks   []chunk.Chunk
	Config   chunk.Config
	BuiltAt  time.Time
}

// Status は構築状態の概要
type Status struct {
	State     BuildState
	Document  string
	Chunks    int
	LastError string
	UpdatedAt time.Time
}

// KnowledgeBase はセッションごとのインデックスを保持します。
// 再構築は直列化され、完了したインデックスだけがアトミックに公開されます。
// 構築中も読み手は直前のインデックスを参照し続けます
type KnowledgeBase struct {
	builder Builder
	logger  *slog.Logger

	buildMu sync.Mutex
	current atomic.Pointer[Snapshot]

	statusMu sync.RWMutex
	status   Status
}

// KnowledgeBaseOption は KnowledgeBase のオプション
type KnowledgeBaseOption func(*KnowledgeBase)

// WithKnowledgeBaseLogger はロガーを設定します
func WithKnowledgeBaseLogger(logger *slog.Logger) KnowledgeBaseOption {
	return func(kb *KnowledgeBase) {
		if logger != nil {
			kb.logger = logger
		}
	}
}

// NewKnowledgeBase は空のナレッジベースを作成します
func NewKnowledgeBase(builder Builder, opts ...KnowledgeBaseOption) *KnowledgeBase {
	kb := &KnowledgeBase{
		builder: builder,
		logger:  slog.Default(),
		status:  Status{State: BuildStateIdle, UpdatedAt: time.Now()},
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Rebuild はドキュメントからインデックスを構築し、成功した場合のみ公開します。
// 失敗した場合は直前のインデックスが残ります
func (kb *KnowledgeBase) Rebuild(ctx context.Context, doc Document, cfg chunk.Config) (*Snapshot, error) {
	kb.buildMu.Lock()
	defer kb.buildMu.Unlock()

	kb.setStatus(Status{State: BuildStateBuilding, Document: doc.Name})

	result, err := kb.builder.Build(ctx, doc, cfg)
	if err != nil {
		kb.setStatus(Status{State: BuildStateFailed, Document: doc.Name, LastError: err.Error()})
		kb.logger.Warn("ナレッジベースの再構築に失敗しました。直前のインデックスを維持します",
			"document", doc.Name,
			"error", err,
		)
		return nil, err
	}

	snap := &Snapshot{
		Document: result.Document,
		Index:    result.Index,
		Chunks:   result.Chunks,
		Config:   cfg,
		BuiltAt:  time.Now(),
	}
	kb.current.Store(snap)
	kb.setStatus(Status{State: BuildStateReady, Document: snap.Document, Chunks: len(snap.Chunks)})

	return snap, nil
}

// MarkBuilding は再構築の受付時点で状態を構築中にします。
// 非同期に Rebuild を呼ぶ前に使います
func (kb *KnowledgeBase) MarkBuilding(document string) {
	kb.setStatus(Status{State: BuildStateBuilding, Document: document})
}

// Current は公開済みのスナップショットを返します
func (kb *KnowledgeBase) Current() mo.Option[*Snapshot] {
	if snap := kb.current.Load(); snap != nil {
		return mo.Some(snap)
	}
	return mo.None[*Snapshot]()
}

// Status は構築状態を返します
func (kb *KnowledgeBase) Status() Status {
	kb.statusMu.RLock()
	defer kb.statusMu.RUnlock()
	return kb.status
}

func (kb *KnowledgeBase) setStatus(s Status) {
	s.UpdatedAt = time.Now()
	kb.statusMu.Lock()
	kb.status = s
	kb.statusMu.Unlock()
}
