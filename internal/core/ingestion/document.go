package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
)

// ErrInvalidDocument はテキストとして扱えないドキュメントの場合のエラー
var ErrInvalidDocument = errors.New("invalid document")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document はアップロードされたドキュメント
type Document struct {
	Name    string
	Content []byte
}

// Decode はドキュメントをUTF-8テキストとして取り出します。
// バイナリや不正なUTF-8の場合は ErrInvalidDocument を返します
func (d Document) Decode() (string, error) {
	content := bytes.TrimPrefix(d.Content, utf8BOM)
	if len(content) == 0 {
		return "", nil
	}
	if enry.IsBinary(content) {
		return "", fmt.Errorf("%w: %s looks like a binary file", ErrInvalidDocument, d.Name)
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidDocument, d.Name)
	}
	return string(content), nil
}
