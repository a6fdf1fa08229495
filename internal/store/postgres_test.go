package store_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

const pgDSNEnv = "ODYSSEY_TEST_PG_DSN"

func newPostgresItems(t *testing.T) *store.PostgresCollection[item] {
	t.Helper()
	dsn := os.Getenv(pgDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", pgDSNEnv)
	}
	_, err := db.Migrate(dsn)
	require.NoError(t, err)
	pool, err := db.New(context.Background(), dsn, db.PoolOptions{MaxConns: 8})
	require.NoError(t, err)
	name := "items-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM records WHERE collection=$1`, name)
		pool.Close()
	})
	return store.NewPostgres[item](pool, name)
}

func TestPostgresCollection(t *testing.T) {
	exerciseCollection(t, newPostgresItems(t))
}

func TestPostgresConcurrentIncrements(t *testing.T) {
	c := newPostgresItems(t)
	ctx := context.Background()
	_, err := c.Add(ctx, item{ID: "p", Code: "P001", Stock: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.IncrementNumber(ctx, "p", "stock", -1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Find[item](ctx, c, "p")
	require.NoError(t, err)
	require.InDelta(t, -10, got.Stock, 0.0001)
}

func TestPostgresEditKeepsConcurrentIncrements(t *testing.T) {
	c := newPostgresItems(t)
	ctx := context.Background()
	_, err := c.Add(ctx, item{ID: "p", Code: "P001", Stock: 10})
	require.NoError(t, err)
	stale, err := store.Find[item](ctx, c, "p")
	require.NoError(t, err)

	_, err = c.IncrementNumber(ctx, "p", "stock", -3)
	require.NoError(t, err)
	stale.Code = "P002"
	saved, err := c.UpdateKeeping(ctx, stale, "stock")
	require.NoError(t, err)
	require.Equal(t, item{ID: "p", Code: "P002", Stock: 7}, saved)
}
