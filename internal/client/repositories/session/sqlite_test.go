package session

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE session (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyAccessToken, []byte("a.b.c")))

	v, err := r.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, []byte("a.b.c"), v)
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyRefreshToken, []byte("old")))
	require.NoError(t, r.Set(ctx, KeyRefreshToken, []byte("new")))

	v, err := r.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestDeleteListClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyEmail, []byte("reader@example.com")))
	require.NoError(t, r.Set(ctx, KeyAccessToken, []byte("a")))
	require.NoError(t, r.Set(ctx, KeyRefreshToken, []byte("r")))

	require.NoError(t, r.Delete(ctx, KeyAccessToken))
	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{KeyEmail: []byte("reader@example.com"), KeyRefreshToken: []byte("r")}, all)

	require.NoError(t, r.Clear(ctx))
	all, err = r.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestClosedDB_ReturnsErrors(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, err := r.Get(ctx, "k")
	require.Error(t, err)
	require.Error(t, r.Set(ctx, "k", []byte("v")))
	require.Error(t, r.Delete(ctx, "k"))
	require.Error(t, r.Clear(ctx))
	_, err = r.List(ctx)
	require.Error(t, err)
}
