package llm

import "errors"

var (
	// ErrLanguageModelService は言語モデルの呼び出しに失敗した場合のエラー
	ErrLanguageModelService = errors.New("language model service error")

	// ErrEmbeddingService は埋め込みサービスの呼び出しに失敗した場合のエラー
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrEmptyResponse はモデルが空の応答を返した場合のエラー
	ErrEmptyResponse = errors.New("empty response from model")
)
