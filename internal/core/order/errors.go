package order

import "errors"

var (
	// ErrDuplicateOrder は同じ注文IDが既に存在する場合のエラー
	ErrDuplicateOrder = errors.New("duplicate order id")

	// ErrInvalidRecord はレコードが不正な場合のエラー
	ErrInvalidRecord = errors.New("invalid order record")
)
