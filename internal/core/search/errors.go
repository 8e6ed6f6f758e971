package search

import "errors"

var (
	// ErrUnavailable はナレッジベースが構築されていない場合のエラー
	ErrUnavailable = errors.New("retrieval unavailable: no index configured")

	// ErrDimensionMismatch は埋め込みの次元が揃っていない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
