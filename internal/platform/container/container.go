// Package container は設定からアプリケーションの依存関係を組み立てます。
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/assist-rag/internal/core/assistant"
	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/core/session"
	"github.com/jinford/assist-rag/internal/infra/memory"
	"github.com/jinford/assist-rag/internal/infra/openai"
	"github.com/jinford/assist-rag/internal/infra/postgres"
	"github.com/jinford/assist-rag/internal/platform/config"
	"github.com/jinford/assist-rag/internal/platform/database"
	"github.com/jinford/assist-rag/internal/platform/retry"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config   *config.Config
	Profile  assistant.Profile
	Messages assistant.Messages

	ChatClient       llm.Client
	Embedder         llm.Embedder
	ChatLimiter      *llm.RateLimiter
	EmbeddingLimiter *llm.RateLimiter

	Orders    order.Repository
	Pipeline  *ingestion.Pipeline
	Sessions  *session.Manager
	Assistant *assistant.Service

	logger   *slog.Logger
	database *database.DB
}

type containerOptions struct {
	logger     *slog.Logger
	chatClient llm.Client
	embedder   llm.Embedder
	orders     order.Repository
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerChatClient はチャットクライアントを差し替える
func WithContainerChatClient(client llm.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.chatClient = client
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder llm.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerOrderRepository は注文ストアを差し替える
func WithContainerOrderRepository(repo order.Repository) ContainerOption {
	return func(opts *containerOptions) {
		opts.orders = repo
	}
}

// New は設定からコンテナを生成する
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// 1. 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	c := &Container{
		Config: cfg,
		logger: options.logger,
	}

	// 2. プロフィール
	profile, messages, err := loadProfile(cfg)
	if err != nil {
		return nil, err
	}
	c.Profile = profile
	c.Messages = messages

	// 3. モデルクライアント。レート制限は全セッションで共有し、
	// インデックス構築の埋め込みが会話のチャット呼び出しを待たせないよう別々に持つ
	policy := retry.DefaultPolicy()
	policy.Timeout = cfg.LLM.Timeout
	policy.MaxRetries = cfg.LLM.MaxRetries
	c.ChatLimiter = llm.NewRateLimiter(cfg.LLM.RateLimitPerMinute, 0)
	c.EmbeddingLimiter = llm.NewRateLimiter(cfg.LLM.EmbeddingRateLimitPerMinute, cfg.Chunk.Concurrency)

	clientOpts := []openai.ClientOption{
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithModel(cfg.OpenAI.ChatModel),
		openai.WithTemperature(cfg.LLM.Temperature),
		openai.WithRetryPolicy(policy),
		openai.WithLogger(options.logger),
	}

	chatClient := options.chatClient
	if chatClient == nil {
		client, err := openai.NewClient(cfg.OpenAI.APIKey, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		chatClient = client
	}
	c.ChatClient = llm.NewThrottledClient(chatClient, c.ChatLimiter)

	embedder := options.embedder
	if embedder == nil {
		e, err := openai.NewEmbedder(cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbedderClientOptions(clientOpts...),
		)
		if err != nil {
			return nil, fmt.Errorf("Embedder 初期化に失敗しました: %w", err)
		}
		embedder = e
	}
	c.Embedder = llm.NewThrottledEmbedder(embedder, c.EmbeddingLimiter)

	// 4. インデックス構築パイプライン
	splitterOpts, err := splitterOptions(cfg)
	if err != nil {
		return nil, err
	}
	c.Pipeline = ingestion.NewPipeline(c.Embedder,
		ingestion.WithPipelineLogger(options.logger),
		ingestion.WithEmbeddingWorkers(cfg.Chunk.Concurrency),
		ingestion.WithSplitterOptions(splitterOpts...),
	)

	// 5. 注文ストア
	c.Orders = options.orders
	if c.Orders == nil {
		if c.Orders, err = c.openOrderStore(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.seedOrders(ctx); err != nil {
		c.Close()
		return nil, err
	}

	// 6. セッションとアシスタント
	c.Sessions = session.NewManager(c.Pipeline, session.WithManagerLogger(options.logger))

	lookupPolicy := retry.NoRetry(cfg.LLM.Timeout)
	lookupPolicy.MaxRetries = cfg.LLM.MaxRetries
	router := assistant.NewRouter(
		assistant.NewKnowledgeHandler(c.ChatClient, c.Profile,
			assistant.WithTopK(cfg.Assistant.TopK),
			assistant.WithKnowledgeMessages(c.Messages),
			assistant.WithKnowledgeLogger(options.logger),
		),
		assistant.NewOrderHandler(c.ChatClient, c.Orders, c.Profile,
			assistant.WithLookupPolicy(lookupPolicy),
			assistant.WithOrderMessages(c.Messages),
			assistant.WithOrderLogger(options.logger),
		),
		assistant.NewHandoffHandler(cfg.Assistant.HandoffThreshold,
			assistant.WithHandoffMessages(c.Messages),
			assistant.WithHandoffLogger(options.logger),
		),
	)

	assistantPolicy := assistant.DefaultPolicy()
	assistantPolicy.HandoffThreshold = cfg.Assistant.HandoffThreshold
	assistantPolicy.TopK = cfg.Assistant.TopK

	c.Assistant = assistant.NewService(
		intent.NewClassifier(c.ChatClient, intent.WithClassifierLogger(options.logger)),
		router,
		c.Profile,
		assistant.WithPolicy(assistantPolicy),
		assistant.WithServiceLogger(options.logger),
	)

	return c, nil
}

// NewSession は挨拶付きのセッションを作成する
func (c *Container) NewSession() *session.Session {
	return c.Sessions.Create(c.Profile.Description)
}

// IndexDocument はセッションのナレッジベースを設定値で再構築する
func (c *Container) IndexDocument(ctx context.Context, sess *session.Session, doc ingestion.Document) (*ingestion.Snapshot, error) {
	return sess.Knowledge.Rebuild(ctx, doc, c.Config.ChunkSettings())
}

// Close は内部リソースを解放する
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Sessions != nil {
		c.Sessions.CloseAll()
	}
	if c.database != nil {
		c.database.Close()
		c.database = nil
	}
}

// Logger はロガーを返す
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *Container) openOrderStore(ctx context.Context) (order.Repository, error) {
	if c.Config.Orders.Store != config.OrderStorePostgres {
		repo, err := memory.NewOrderRepository()
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	db, err := database.New(ctx, database.ConnectionParams{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}
	c.database = db

	repo := postgres.NewOrderRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("注文テーブルの作成に失敗しました: %w", err)
	}
	return repo, nil
}

func (c *Container) seedOrders(ctx context.Context) error {
	path := c.Config.Orders.SeedFile
	if path == "" {
		return nil
	}
	records, err := order.LoadSeedFile(path)
	if err != nil {
		return err
	}

	// メモリストアは空から始まるため、重複はファイル自体の誤りとして全体を拒否する
	if c.Config.Orders.Store != config.OrderStorePostgres {
		if err := c.Orders.InsertAll(ctx, records); err != nil {
			return fmt.Errorf("注文の初期データ投入に失敗しました: %w", err)
		}
		c.logger.Info("注文の初期データを投入しました", "path", path, "count", len(records))
		return nil
	}

	// 永続ストアには再起動のたびに同じ初期データが渡されるため、登録済みの注文だけを飛ばす
	inserted, skipped := 0, 0
	for _, rec := range records {
		err := c.Orders.Insert(ctx, rec)
		switch {
		case errors.Is(err, order.ErrDuplicateOrder):
			skipped++
		case err != nil:
			return fmt.Errorf("注文の初期データ投入に失敗しました: %s: %w", rec.OrderID, err)
		default:
			inserted++
		}
	}
	c.logger.Info("注文の初期データを投入しました", "path", path, "inserted", inserted, "skipped", skipped)
	return nil
}

func loadProfile(cfg *config.Config) (assistant.Profile, assistant.Messages, error) {
	if cfg.Assistant.ProfilePath == "" {
		return assistant.DefaultProfile(), assistant.DefaultMessages(), nil
	}
	p, err := config.LoadProfile(cfg.Assistant.ProfilePath)
	if err != nil {
		return assistant.Profile{}, assistant.Messages{}, err
	}
	return assistant.Profile{Name: p.Name, Description: p.Description},
		assistant.Messages{
			KnowledgeNotConfigured: p.Replies.KnowledgeNotConfigured,
			KnowledgeUnavailable:   p.Replies.KnowledgeUnavailable,
			OrderUnavailable:       p.Replies.OrderUnavailable,
			Escalation:             p.Replies.Escalation,
			Deferred:               p.Replies.Deferred,
		}, nil
}

func splitterOptions(cfg *config.Config) ([]chunk.Option, error) {
	if cfg.Chunk.LengthUnit != config.LengthUnitTokens {
		return nil, nil
	}
	tc, err := chunk.NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
	}
	return []chunk.Option{chunk.WithTokenLength(tc)}, nil
}
