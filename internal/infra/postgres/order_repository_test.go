package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/platform/database"
)

// startPostgres は dockertest で PostgreSQL コンテナを起動します。
// Docker が使えない環境ではテストをスキップします
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, err := dockertest.NewPool(os.Getenv("DOCKER_HOST"))
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=assist",
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=assist",
	})
	require.NoError(t, err)
	_ = resource.Expire(120)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	dsn := fmt.Sprintf("postgres://assist:secret@%s/assist?sslmode=disable", resource.GetHostPort("5432/tcp"))

	var db *database.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var connErr error
		db, connErr = database.NewFromDSN(ctx, dsn)
		return connErr
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func TestOrderRepository_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	repo := NewOrderRepository(db.Pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	t.Run("insert and find", func(t *testing.T) {
		rec := &order.Record{OrderID: "A1", Username: "tanaka", Product: "ノートPC", Status: order.StatusShipped, Date: "2026-10-01"}
		require.NoError(t, repo.Insert(ctx, rec))

		found, err := repo.Find(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, rec, found.MustGet())
	})

	t.Run("missing order", func(t *testing.T) {
		found, err := repo.Find(ctx, "Z9")
		require.NoError(t, err)
		assert.True(t, found.IsAbsent())
	})

	t.Run("duplicate id is rejected without mutation", func(t *testing.T) {
		err := repo.Insert(ctx, &order.Record{OrderID: "A1", Username: "suzuki", Status: order.StatusCancelled})
		require.ErrorIs(t, err, order.ErrDuplicateOrder)

		found, err := repo.Find(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, "tanaka", found.MustGet().Username)
		assert.Equal(t, order.StatusShipped, found.MustGet().Status)
	})

	t.Run("insert all rolls back on duplicate", func(t *testing.T) {
		err := repo.InsertAll(ctx, []*order.Record{
			{OrderID: "B1", Status: order.StatusPaid},
			{OrderID: "A1", Status: order.StatusPaid},
		})
		require.ErrorIs(t, err, order.ErrDuplicateOrder)

		found, err := repo.Find(ctx, "B1")
		require.NoError(t, err)
		assert.True(t, found.IsAbsent())
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		require.NoError(t, repo.InsertAll(ctx, []*order.Record{
			{OrderID: "C2", Status: order.StatusPaid},
			{OrderID: "B2", Status: order.StatusAwaitingPayment},
		}))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		ids := make([]string, len(all))
		for i, r := range all {
			ids[i] = r.OrderID
		}
		assert.Equal(t, []string{"A1", "C2", "B2"}, ids)
	})
}

func TestOrderRepository_InsertRejectsInvalidRecordWithoutQuery(t *testing.T) {
	repo := NewOrderRepository(nil)
	err := repo.Insert(context.Background(), &order.Record{OrderID: "", Status: order.StatusPaid})
	assert.ErrorIs(t, err, order.ErrInvalidRecord)

	err = repo.InsertAll(context.Background(), []*order.Record{{OrderID: "X", Status: "lost"}})
	assert.ErrorIs(t, err, order.ErrInvalidRecord)
}
