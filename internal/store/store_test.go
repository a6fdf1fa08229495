package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
	"github.com/odyssey-erp/odyssey-commerce/internal/store/storetest"
)

type item struct {
	ID    string  `json:"id"`
	Code  string  `json:"code"`
	Stock float64 `json:"stock"`
}

func (i item) GetID() string      { return i.ID }
func (i item) NaturalKey() string { return i.Code }

func exerciseCollection(t *testing.T, c store.Collection[item]) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Add(ctx, item{ID: "a", Code: "P001"})
	require.NoError(t, err)
	_, err = c.Add(ctx, item{ID: "b", Code: "P002"})
	require.NoError(t, err)
	_, err = c.Add(ctx, item{ID: "c"})
	require.NoError(t, err)
	_, err = c.Add(ctx, item{ID: "d"})
	require.NoError(t, err, "empty natural keys never collide")

	_, err = c.Add(ctx, item{ID: "e", Code: "P001"})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, shared.ErrPersistence)

	_, err = c.Update(ctx, item{ID: "b", Code: "P001"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = c.Update(ctx, item{ID: "missing"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "a", all[0].ID)

	inc, ok := c.(store.Incrementer[item])
	require.True(t, ok)
	got, err := inc.IncrementNumber(ctx, "a", "stock", 5)
	require.NoError(t, err)
	require.InDelta(t, 5, got.Stock, 0.0001)
	got, err = inc.IncrementNumber(ctx, "a", "stock", -2.5)
	require.NoError(t, err)
	require.InDelta(t, 2.5, got.Stock, 0.0001)
	require.Equal(t, "P001", got.Code)

	found, err := store.Find[item](ctx, c, "a")
	require.NoError(t, err)
	require.InDelta(t, 2.5, found.Stock, 0.0001)

	keeper, ok := c.(store.FieldKeeper[item])
	require.True(t, ok)
	kept, err := keeper.UpdateKeeping(ctx, item{ID: "a", Code: "P010", Stock: 99}, "stock")
	require.NoError(t, err)
	require.Equal(t, "P010", kept.Code)
	require.InDelta(t, 2.5, kept.Stock, 0.0001, "stored stock wins over the edited copy")
	_, err = keeper.UpdateKeeping(ctx, item{ID: "b", Code: "P010"}, "stock")
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = keeper.UpdateKeeping(ctx, item{ID: "missing"}, "stock")
	require.ErrorIs(t, err, shared.ErrNotFound)
	found, err = store.Find[item](ctx, c, "a")
	require.NoError(t, err)
	require.Equal(t, item{ID: "a", Code: "P010", Stock: 2.5}, found)

	require.NoError(t, c.Delete(ctx, "c"))
	require.ErrorIs(t, c.Delete(ctx, "c"), shared.ErrNotFound)
	_, err = store.Find[item](ctx, c, "c")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryCollection(t *testing.T) {
	exerciseCollection(t, store.NewMemory[item]("items"))
}

func TestMirrorOverMemory(t *testing.T) {
	exerciseCollection(t, store.NewMirror[item](store.NewMemory[item]("items")))
}

func TestGormSQLiteCollection(t *testing.T) {
	gdb, err := store.OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	exerciseCollection(t, store.NewGorm[item](gdb, "items"))
}

func TestMirrorKeepsCacheOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	faulty := storetest.Wrap[item](store.NewMemory[item]("items"))
	mirror := store.NewMirror[item](faulty)

	_, err := mirror.Add(ctx, item{ID: "a", Code: "P001"})
	require.NoError(t, err)
	_, err = mirror.GetAll(ctx)
	require.NoError(t, err)

	faulty.FailOn(storetest.OpUpdate, 1)
	_, err = mirror.Update(ctx, item{ID: "a", Code: "P999"})
	require.ErrorIs(t, err, storetest.ErrInjected)

	faulty.FailOn(storetest.OpAdd, 1)
	_, err = mirror.Add(ctx, item{ID: "b"})
	require.Error(t, err)

	faulty.FailOn(storetest.OpDelete, 1)
	require.Error(t, mirror.Delete(ctx, "a"))

	all, err := mirror.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []item{{ID: "a", Code: "P001"}}, all)
}

func TestMirrorReload(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory[item]("items")
	mirror := store.NewMirror[item](backend)

	all, err := mirror.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = backend.Add(ctx, item{ID: "other-session"})
	require.NoError(t, err)
	all, _ = mirror.GetAll(ctx)
	require.Empty(t, all, "mirror serves its snapshot until reloaded")

	require.NoError(t, mirror.Reload(ctx))
	all, _ = mirror.GetAll(ctx)
	require.Len(t, all, 1)
}
