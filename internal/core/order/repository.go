package order

import (
	"context"

	"github.com/samber/mo"
)

// Repository は注文レコードの追記専用ストア。
// Insert は重複する注文IDを ErrDuplicateOrder で拒否し、既存のレコードを変更しません
type Repository interface {
	Find(ctx context.Context, orderID string) (mo.Option[*Record], error)
	Insert(ctx context.Context, record *Record) error
	// InsertAll は全件を登録するか、1件も登録しないかのどちらかです
	InsertAll(ctx context.Context, records []*Record) error
	List(ctx context.Context) ([]*Record, error)
}
