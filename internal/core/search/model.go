package search

import "github.com/jinford/assist-rag/internal/core/chunk"

// DefaultTopK は検索結果件数の既定値
const DefaultTopK = 4

// Entry はインデックスに格納されるチャンクと埋め込みの組
type Entry struct {
	Chunk     chunk.Chunk
	Embedding []float32 // L2ノルム1
}

// Result は検索結果
type Result struct {
	Chunk chunk.Chunk
	Rank  int     // 1始まりの順位
	Score float64 // 正規化済みベクトルの内積（コサイン類似度）
}
