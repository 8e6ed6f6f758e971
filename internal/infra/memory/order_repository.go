// Package memory はプロセス内メモリに保持するストア実装を提供します。
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/mo"

	"github.com/jinford/assist-rag/internal/core/order"
)

// OrderRepository はメモリ上の追記専用注文ストア
type OrderRepository struct {
	mu      sync.RWMutex
	records []*order.Record
	byID    map[string]int
}

var _ order.Repository = (*OrderRepository)(nil)

// NewOrderRepository は新しい OrderRepository を作成します。seed は Insert と同じ規則で登録されます
func NewOrderRepository(seed ...*order.Record) (*OrderRepository, error) {
	r := &OrderRepository{byID: make(map[string]int)}
	for _, rec := range seed {
		if err := r.Insert(context.Background(), rec); err != nil {
			return nil, fmt.Errorf("failed to seed orders: %w", err)
		}
	}
	return r, nil
}

// Find は注文IDでレコードを検索します
func (r *OrderRepository) Find(ctx context.Context, orderID string) (mo.Option[*order.Record], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[*order.Record](), err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[orderID]
	if !ok {
		return mo.None[*order.Record](), nil
	}
	rec := *r.records[i]
	return mo.Some(&rec), nil
}

// Insert はレコードを追加します。重複する注文IDは ErrDuplicateOrder を返し、何も変更しません
func (r *OrderRepository) Insert(ctx context.Context, record *order.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[record.OrderID]; exists {
		return fmt.Errorf("%w: %s", order.ErrDuplicateOrder, record.OrderID)
	}
	rec := *record
	r.byID[rec.OrderID] = len(r.records)
	r.records = append(r.records, &rec)
	return nil
}

// InsertAll は全件を検証してから登録します。1件でも不正または重複があれば何も登録しません
func (r *OrderRepository) InsertAll(ctx context.Context, records []*order.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, exists := r.byID[rec.OrderID]; exists || seen[rec.OrderID] {
			return fmt.Errorf("%w: %s", order.ErrDuplicateOrder, rec.OrderID)
		}
		seen[rec.OrderID] = true
	}
	for _, rec := range records {
		c := *rec
		r.byID[c.OrderID] = len(r.records)
		r.records = append(r.records, &c)
	}
	return nil
}

// List は登録順に全レコードを返します
func (r *OrderRepository) List(ctx context.Context) ([]*order.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*order.Record, len(r.records))
	for i, rec := range r.records {
		c := *rec
		out[i] = &c
	}
	return out, nil
}
