package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/chunk"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 60, cfg.LLM.RateLimitPerMinute)
	assert.Equal(t, 600, cfg.LLM.EmbeddingRateLimitPerMinute)
	assert.Equal(t, 100, cfg.Chunk.Size)
	assert.Equal(t, 20, cfg.Chunk.Overlap)
	assert.Nil(t, cfg.Chunk.Separators)
	assert.Equal(t, LengthUnitChars, cfg.Chunk.LengthUnit)
	assert.Equal(t, 4, cfg.Assistant.TopK)
	assert.Equal(t, 0.6, cfg.Assistant.HandoffThreshold)
	assert.Equal(t, OrderStoreMemory, cfg.Orders.Store)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "https://api.deepseek.com")
	t.Setenv("OPENAI_CHAT_MODEL", "deepseek-chat")
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "40")
	t.Setenv("CHUNK_SEPARATORS", `\n\n|\n|。`)
	t.Setenv("RETRIEVAL_TOP_K", "6")
	t.Setenv("HANDOFF_THRESHOLD", "0.75")
	t.Setenv("ORDER_STORE", "Postgres")
	t.Setenv("LLM_TIMEOUT_SECONDS", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.deepseek.com", cfg.OpenAI.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.OpenAI.ChatModel)
	assert.Equal(t, chunk.Config{ChunkSize: 200, ChunkOverlap: 40, Separators: []string{"\n\n", "\n", "。"}}, cfg.ChunkSettings())
	assert.Equal(t, 6, cfg.Assistant.TopK)
	assert.Equal(t, 0.75, cfg.Assistant.HandoffThreshold)
	assert.Equal(t, OrderStorePostgres, cfg.Orders.Store)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHUNK_SIZE=321\nHTTP_PORT=9090\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CHUNK_SIZE")
		os.Unsetenv("HTTP_PORT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 321, cfg.Chunk.Size)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_MissingEnvFileIsTolerated(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidSeparators(t *testing.T) {
	t.Setenv("CHUNK_SEPARATORS", `\q`)

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"overlap not smaller than size", func(c *Config) { c.Chunk.Overlap = c.Chunk.Size }, chunk.ErrInvalidConfig},
		{"zero size", func(c *Config) { c.Chunk.Size = 0 }, chunk.ErrInvalidConfig},
		{"negative overlap", func(c *Config) { c.Chunk.Overlap = -1 }, chunk.ErrInvalidConfig},
		{"unknown length unit", func(c *Config) { c.Chunk.LengthUnit = "bytes" }, ErrInvalidConfig},
		{"token size below one character", func(c *Config) {
			c.Chunk.LengthUnit = LengthUnitTokens
			c.Chunk.Size = chunk.MinTokenChunkSize - 1
			c.Chunk.Overlap = 0
		}, ErrInvalidConfig},
		{"zero concurrency", func(c *Config) { c.Chunk.Concurrency = 0 }, ErrInvalidConfig},
		{"zero top-k", func(c *Config) { c.Assistant.TopK = 0 }, ErrInvalidConfig},
		{"threshold above one", func(c *Config) { c.Assistant.HandoffThreshold = 1.2 }, ErrInvalidConfig},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, ErrInvalidConfig},
		{"unknown order store", func(c *Config) { c.Orders.Store = "redis" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseSeparators(t *testing.T) {
	got, err := ParseSeparators(`\n\n|\t||。`)
	require.NoError(t, err)
	assert.Equal(t, []string{"\n\n", "\t", "。"}, got)

	got, err = ParseSeparators("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: ショップアシスタント
description: あなたはオンラインショップのサポート担当です。
replies:
  orderUnavailable: 注文サービスは現在ご利用いただけません。
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "ショップアシスタント", p.Name)
	assert.Equal(t, "あなたはオンラインショップのサポート担当です。", p.Description)
	assert.Equal(t, "注文サービスは現在ご利用いただけません。", p.Replies.OrderUnavailable)
	assert.Empty(t, p.Replies.Escalation)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: x\n"), 0o600))
	_, err = LoadProfile(empty)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadProfile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
