package container

import (
	"context"
	"os"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/assistant"
	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/llm/llmtest"
	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/infra/memory"
	"github.com/jinford/assist-rag/internal/infra/openai"
	"github.com/jinford/assist-rag/internal/platform/config"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_WiresAssistant(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Orders.SeedFile = writeFile(t, "orders.yaml", `
orders:
  - orderId: A1
    username: sato
    product: keyboard
    status: shipped
    date: "2026-10-01"
`)
	cfg.Assistant.ProfilePath = writeFile(t, "profile.yaml", `
name: shop
description: You are the support assistant of an online shop.
replies:
  deferred: We will get back to you.
`)

	client := llmtest.NewScriptedClient(
		llmtest.Reply(`{"intentType":"other","confidence":0.2}`),
		llmtest.Reply(`{"intentType":"order","confidence":0.9}`),
		llmtest.Calls(llm.ToolCall{ID: "call_1", Name: assistant.CheckOrderStatusTool, Arguments: `{"orderId":"A1"}`}),
		llmtest.Reply("A1 has shipped."),
	)
	c, err := New(context.Background(), cfg,
		WithContainerChatClient(client),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
	)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "shop", c.Profile.Name)

	rec, err := c.Orders.Find(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, rec.IsPresent())

	sess := c.NewSession()
	greeting := sess.Log.Messages()[0]
	assert.Equal(t, conversation.KindGreeting, greeting.Kind)
	assert.Equal(t, "You are the support assistant of an online shop.", greeting.Content)

	reply, err := c.Assistant.Respond(context.Background(), sess, "I want to complain")
	require.NoError(t, err)
	assert.Equal(t, "We will get back to you.", reply.Text)

	reply, err = c.Assistant.Respond(context.Background(), sess, "where is A1?")
	require.NoError(t, err)
	assert.Equal(t, assistant.RouteOrder, reply.Route)
	assert.Equal(t, "A1 has shipped.", reply.Text)
}

func TestContainer_IndexDocumentUsesConfiguredChunking(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Chunk.Size = 30
	cfg.Chunk.Overlap = 5

	c, err := New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient()),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
	)
	require.NoError(t, err)
	defer c.Close()

	sess := c.NewSession()
	snap, err := c.IndexDocument(context.Background(), sess, ingestion.Document{
		Name:    "faq.txt",
		Content: []byte("Returns are accepted within 14 days.\n\nShipping takes three days."),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Config.ChunkSize)
	for _, ch := range snap.Chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 30)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Chunk.Overlap = cfg.Chunk.Size

	_, err := New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient()),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
	)
	assert.Error(t, err)
}

func TestNew_RequiresAPIKeyWithoutInjectedClients(t *testing.T) {
	cfg := loadConfig(t)
	cfg.OpenAI.APIKey = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, openai.ErrAPIKeyNotSet)
}

func TestNew_DuplicateSeedFails(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Orders.SeedFile = writeFile(t, "orders.yaml", `
orders:
  - {orderId: A1, status: paid}
  - {orderId: A1, status: shipped}
`)

	_, err := New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient()),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
	)
	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
}

func TestContainer_IndexingDoesNotStallOtherSessions(t *testing.T) {
	cfg := loadConfig(t)
	cfg.LLM.EmbeddingRateLimitPerMinute = 1

	c, err := New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient(
			llmtest.Reply(`{"intentType":"other","confidence":0.2}`),
		)),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
	)
	require.NoError(t, err)
	defer c.Close()

	var doc strings.Builder
	for i := range 200 {
		fmt.Fprintf(&doc, "段落%03d: %s\n\n", i, strings.Repeat("あ", 80))
	}

	// セッションAのインデックス構築で埋め込みのレート制限を使い切る
	indexCtx, cancelIndex := context.WithCancel(context.Background())
	indexed := make(chan error, 1)
	sessA := c.NewSession()
	go func() {
		_, err := c.IndexDocument(indexCtx, sessA, ingestion.Document{Name: "faq.txt", Content: []byte(doc.String())})
		indexed <- err
	}()
	require.Eventually(t, func() bool {
		return c.EmbeddingLimiter.Status().WaitingRequests > 0
	}, 5*time.Second, 10*time.Millisecond)

	// セッションBのターンは待たされずに応答する
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := c.Assistant.Respond(ctx, c.NewSession(), "hello")
	require.NoError(t, err)
	assert.Equal(t, assistant.RouteHandoff, reply.Route)
	assert.Equal(t, c.Messages.Deferred, reply.Text)

	cancelIndex()
	assert.Error(t, <-indexed)
}

const twoOrderSeed = `
orders:
  - orderId: A1
    username: sato
    product: keyboard
    status: shipped
    date: "2026-10-01"
  - orderId: B2
    username: suzuki
    product: mouse
    status: paid
    date: "2026-10-10"
`

func TestNew_PersistentSeedSkipsOnlyExistingOrders(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Orders.Store = config.OrderStorePostgres
	cfg.Orders.SeedFile = writeFile(t, "orders.yaml", twoOrderSeed)

	// 前回の起動で A1 だけが登録済みのストア
	existing := &order.Record{OrderID: "A1", Username: "sato", Product: "keyboard", Status: order.StatusCompleted, Date: "2026-10-01"}
	repo, err := memory.NewOrderRepository(existing)
	require.NoError(t, err)

	c, err := New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient()),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
		WithContainerOrderRepository(repo),
	)
	require.NoError(t, err)
	defer c.Close()

	a1, err := repo.Find(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, a1.MustGet().Status)

	b2, err := repo.Find(context.Background(), "B2")
	require.NoError(t, err)
	assert.True(t, b2.IsPresent())
}

func TestNew_MemorySeedRejectsDuplicates(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Orders.Store = config.OrderStoreMemory
	cfg.Orders.SeedFile = writeFile(t, "orders.yaml", twoOrderSeed)

	repo, err := memory.NewOrderRepository(&order.Record{OrderID: "B2", Status: order.StatusPaid})
	require.NoError(t, err)

	_, err = New(context.Background(), cfg,
		WithContainerChatClient(llmtest.NewScriptedClient()),
		WithContainerEmbedder(llmtest.NewHashEmbedder(32)),
		WithContainerOrderRepository(repo),
	)
	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
}
