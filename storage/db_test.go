package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseBatch(t *testing.T, db Database) {
	t.Helper()

	require.NoError(t, db.Put([]byte("a"), []byte("1")))

	batch := NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("c"), []byte{})
	batch.Delete([]byte("a"))
	require.Equal(t, 3, batch.Len())
	require.NoError(t, db.Write(batch))

	_, err := db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)

	got, err := db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	got, err = db.Get([]byte("c"))
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, db.Delete([]byte("b")))
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBBatch(t *testing.T) {
	exerciseBatch(t, NewMemDB())
}

func TestLevelDBBatchPersists(t *testing.T) {
	dir := t.TempDir()

	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	exerciseBatch(t, db)
	require.NoError(t, db.Put([]byte("keep"), []byte("v")))
	db.Close()

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestBoltDBBatch(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseBatch(t, db)
}

func TestSQLiteBatch(t *testing.T) {
	db, err := NewSQLDB("sqlite", filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	exerciseBatch(t, db)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("etcd", "")
	require.Error(t, err)
}
