// Package config は環境変数と .env ファイルからアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinford/assist-rag/internal/core/chunk"
)

// 注文ストアの種類
const (
	OrderStoreMemory   = "memory"
	OrderStorePostgres = "postgres"
)

// チャンク長の単位
const (
	LengthUnitChars  = "chars"
	LengthUnitTokens = "tokens"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid configuration")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（ORDER_STORE=postgres の場合のみ使用）
	Database DatabaseConfig

	// OpenAI互換API設定
	OpenAI OpenAIConfig

	// 外部呼び出しのタイムアウト・再試行・レート制限
	LLM LLMConfig

	// チャンク分割設定
	Chunk ChunkConfig

	// 検索・応答設定
	Assistant AssistantConfig

	// 注文ストア設定
	Orders OrderConfig

	Log  LogConfig
	HTTP HTTPConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI互換APIの設定（チャット + 埋め込み）
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string // DeepSeek など互換エンドポイント用
	ChatModel          string
	EmbeddingModel     string
	EmbeddingDimension int
}

// LLMConfig はモデル呼び出しの設定
type LLMConfig struct {
	Temperature                 float64
	Timeout                     time.Duration
	MaxRetries                  int
	RateLimitPerMinute          int // チャット呼び出し
	EmbeddingRateLimitPerMinute int // 埋め込み呼び出し
}

// ChunkConfig はチャンク分割設定
type ChunkConfig struct {
	Size        int
	Overlap     int
	Separators  []string // 空の場合は既定の区切り文字
	LengthUnit  string   // "chars" or "tokens"
	Concurrency int      // 埋め込み生成の並列数
}

// AssistantConfig はアシスタントの応答設定
type AssistantConfig struct {
	ProfilePath      string // YAML。空の場合は既定のプロフィール
	TopK             int
	HandoffThreshold float64
}

// OrderConfig は注文ストア設定
type OrderConfig struct {
	Store    string // "memory" or "postgres"
	SeedFile string // YAML。起動時に投入する注文
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// HTTPConfig はHTTPサーバー設定
type HTTPConfig struct {
	Port int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	separators, err := ParseSeparators(os.Getenv("CHUNK_SEPARATORS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "assistrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "assistrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			Temperature:                 getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			Timeout:                     time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			MaxRetries:                  getEnvAsInt("LLM_MAX_RETRIES", 3),
			RateLimitPerMinute:          getEnvAsInt("LLM_RATE_LIMIT_PER_MINUTE", 60),
			EmbeddingRateLimitPerMinute: getEnvAsInt("EMBEDDING_RATE_LIMIT_PER_MINUTE", 600),
		},
		Chunk: ChunkConfig{
			Size:        getEnvAsInt("CHUNK_SIZE", chunk.DefaultChunkSize),
			Overlap:     getEnvAsInt("CHUNK_OVERLAP", chunk.DefaultChunkOverlap),
			Separators:  separators,
			LengthUnit:  getEnv("CHUNK_LENGTH_UNIT", LengthUnitChars),
			Concurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 4),
		},
		Assistant: AssistantConfig{
			ProfilePath:      getEnv("ASSISTANT_PROFILE", ""),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 4),
			HandoffThreshold: getEnvAsFloat("HANDOFF_THRESHOLD", 0.6),
		},
		Orders: OrderConfig{
			Store:    strings.ToLower(getEnv("ORDER_STORE", OrderStoreMemory)),
			SeedFile: getEnv("ORDER_SEED_FILE", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
	}

	return cfg, nil
}

// ChunkSettings はチャンク分割の設定値を返します
func (c *Config) ChunkSettings() chunk.Config {
	cfg := chunk.Config{
		ChunkSize:    c.Chunk.Size,
		ChunkOverlap: c.Chunk.Overlap,
	}
	if len(c.Chunk.Separators) > 0 {
		cfg.Separators = append([]string(nil), c.Chunk.Separators...)
	}
	return cfg
}

// Validate は起動前に設定を検証します。APIキーの有無はクライアント生成時に検証します
func (c *Config) Validate() error {
	if err := c.ChunkSettings().Validate(); err != nil {
		return err
	}
	switch c.Chunk.LengthUnit {
	case LengthUnitChars:
	case LengthUnitTokens:
		if c.Chunk.Size < chunk.MinTokenChunkSize {
			return fmt.Errorf("%w: CHUNK_SIZE must be at least %d when CHUNK_LENGTH_UNIT=%s: %d",
				ErrInvalidConfig, chunk.MinTokenChunkSize, LengthUnitTokens, c.Chunk.Size)
		}
	default:
		return fmt.Errorf("%w: CHUNK_LENGTH_UNIT must be %q or %q: %q", ErrInvalidConfig, LengthUnitChars, LengthUnitTokens, c.Chunk.LengthUnit)
	}
	if c.Chunk.Concurrency <= 0 {
		return fmt.Errorf("%w: EMBEDDING_CONCURRENCY must be positive: %d", ErrInvalidConfig, c.Chunk.Concurrency)
	}
	if c.Assistant.TopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive: %d", ErrInvalidConfig, c.Assistant.TopK)
	}
	if t := c.Assistant.HandoffThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: HANDOFF_THRESHOLD must be within [0,1]: %v", ErrInvalidConfig, t)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: LLM_TIMEOUT_SECONDS must be positive", ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: LLM_MAX_RETRIES must not be negative: %d", ErrInvalidConfig, c.LLM.MaxRetries)
	}
	switch c.Orders.Store {
	case OrderStoreMemory, OrderStorePostgres:
	default:
		return fmt.Errorf("%w: ORDER_STORE must be %q or %q: %q", ErrInvalidConfig, OrderStoreMemory, OrderStorePostgres, c.Orders.Store)
	}
	return nil
}

// ParseSeparators は "|" 区切りの区切り文字リストを解釈します。
// 各要素は Go の文字列リテラルと同じエスケープ（\n など）を使えます
func ParseSeparators(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s, err := strconv.Unquote(`"` + p + `"`)
		if err != nil {
			return nil, fmt.Errorf("%w: CHUNK_SEPARATORS contains an invalid escape: %q", ErrInvalidConfig, p)
		}
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
