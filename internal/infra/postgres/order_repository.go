// Package postgres は PostgreSQL に保存するストア実装を提供します。
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"

	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/platform/database"
)

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
    seq        BIGSERIAL,
    order_id   TEXT PRIMARY KEY,
    username   TEXT NOT NULL DEFAULT '',
    product    TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    order_date TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	insertOrderSQL = `INSERT INTO orders (order_id, username, product, status, order_date) VALUES ($1, $2, $3, $4, $5)`
	findOrderSQL   = `SELECT order_id, username, product, status, order_date FROM orders WHERE order_id = $1`
	listOrdersSQL  = `SELECT order_id, username, product, status, order_date FROM orders ORDER BY seq`
)

// querier は *pgxpool.Pool と pgx.Tx の共通部分
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository は PostgreSQL の追記専用注文ストア。更新・削除のクエリは持ちません
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ order.Repository = (*OrderRepository)(nil)

// NewOrderRepository は新しい OrderRepository を作成します
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// EnsureSchema は orders テーブルを作成します
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ordersSchema); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	return nil
}

// Find は注文IDでレコードを検索します
func (r *OrderRepository) Find(ctx context.Context, orderID string) (mo.Option[*order.Record], error) {
	var rec order.Record
	err := r.pool.QueryRow(ctx, findOrderSQL, orderID).
		Scan(&rec.OrderID, &rec.Username, &rec.Product, &rec.Status, &rec.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[*order.Record](), nil
	}
	if err != nil {
		return mo.None[*order.Record](), fmt.Errorf("failed to find order %s: %w", orderID, err)
	}
	return mo.Some(&rec), nil
}

// Insert はレコードを追加します。重複する注文IDは ErrDuplicateOrder を返します
func (r *OrderRepository) Insert(ctx context.Context, record *order.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return insert(ctx, r.pool, record)
}

// InsertAll は1トランザクションで全件を登録します
func (r *OrderRepository) InsertAll(ctx context.Context, records []*order.Record) error {
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		for _, rec := range records {
			if err := insert(ctx, tx, rec); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

// List は登録順に全レコードを返します
func (r *OrderRepository) List(ctx context.Context) ([]*order.Record, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var records []*order.Record
	for rows.Next() {
		var rec order.Record
		if err := rows.Scan(&rec.OrderID, &rec.Username, &rec.Product, &rec.Status, &rec.Date); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return records, nil
}

func insert(ctx context.Context, q querier, rec *order.Record) error {
	_, err := q.Exec(ctx, insertOrderSQL, rec.OrderID, rec.Username, rec.Product, string(rec.Status), rec.Date)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", order.ErrDuplicateOrder, rec.OrderID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", rec.OrderID, err)
	}
	return nil
}
