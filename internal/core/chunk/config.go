package chunk

const (
	// DefaultChunkSize はチャンクの最大長（文字数）
	DefaultChunkSize = 100
	// DefaultChunkOverlap は隣接チャンク間の最大重複長
	DefaultChunkOverlap = 20
)

// DefaultSeparators は分割に使う区切り文字の優先順位。
// 段落、行、文末記号、空白、文字単位の順に試します
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	"。", "．", "！", "？",
	". ", "! ", "? ",
	" ",
	"",
}

// Config はチャンク分割の設定
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string // 空の場合は DefaultSeparators
}

// DefaultConfig はデフォルト設定を返します
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Validate は設定を検証します
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk_size", Reason: "must be positive"}
	}
	if c.ChunkOverlap < 0 {
		return &ConfigError{Field: "chunk_overlap", Reason: "must not be negative"}
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return &ConfigError{Field: "chunk_overlap", Reason: "must be smaller than chunk_size"}
	}
	return nil
}

// separators は末尾に必ず空文字（文字単位の分割）を含む区切り文字リストを返します
func (c Config) separators() []string {
	if len(c.Separators) == 0 {
		return DefaultSeparators
	}
	seps := make([]string, 0, len(c.Separators)+1)
	hasEmpty := false
	for _, s := range c.Separators {
		if s == "" {
			hasEmpty = true
		}
		seps = append(seps, s)
	}
	if !hasEmpty {
		seps = append(seps, "")
	}
	return seps
}
