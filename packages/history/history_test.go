package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("sqlite:")
	assert.Error(t, err)
}

func TestParseDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db", parseDSN("sqlite:///tmp/a.db"))
	assert.Equal(t, "./a.db", parseDSN("sqlite:./a.db"))
	assert.Equal(t, "a.db", parseDSN(" a.db "))
}

func TestRecordAndList(t *testing.T) {
	store := openTemp(t)

	req := rest.NewRequest(rest.MethodGet, "/users/1")
	resp := &rest.Response{
		StatusCode:    200,
		Body:          []byte(`{"id":1}`),
		Duration:      42 * time.Millisecond,
		TransactionID: "tx-1",
	}
	id, err := store.Record(req, resp, nil)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	failed := rest.NewRequest(rest.MethodPost, "/users").SetTransactionID("tx-2")
	execErr := &rest.Error{Op: "execute", Kind: rest.KindExecution, Err: errors.New("connection refused")}
	_, err = store.Record(failed, nil, execErr)
	require.NoError(t, err)

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, "POST", newest.Method)
	assert.Equal(t, "tx-2", newest.TransactionID)
	assert.Equal(t, "execution", newest.ErrorKind)
	assert.True(t, newest.Failed())
	assert.Equal(t, 0, newest.Status)

	oldest := entries[1]
	assert.Equal(t, "GET", oldest.Method)
	assert.Equal(t, "/users/1", oldest.Resource)
	assert.Equal(t, "tx-1", oldest.TransactionID)
	assert.Equal(t, 200, oldest.Status)
	assert.Equal(t, int64(42), oldest.DurationMs)
	assert.Equal(t, 8, oldest.ResponseSize)
	assert.False(t, oldest.Failed())

	limited, err := store.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newest.ID, limited[0].ID)
}

func TestRecord_NilRequest(t *testing.T) {
	store := openTemp(t)
	_, err := store.Record(nil, nil, nil)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	store := openTemp(t)

	for i := 0; i < 3; i++ {
		_, err := store.Record(rest.NewRequest(rest.MethodGet, "/ping"), &rest.Response{StatusCode: 204}, nil)
		require.NoError(t, err)
	}

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	entries, err := store.List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Record(rest.NewRequest(rest.MethodDelete, "/users/1"), &rest.Response{StatusCode: 204}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "DELETE", entries[0].Method)
}
