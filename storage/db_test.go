package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBBatchPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)

	require.NoError(t, db1.Put([]byte("stale"), []byte("old")))
	batch := new(Batch)
	batch.Put([]byte("key"), []byte("value"))
	batch.Delete([]byte("stale"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, db1.Write(batch))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	_, err = db2.Get([]byte("stale"))
	require.True(t, errors.Is(err, ErrNotFound))
	ok, err := db2.Has([]byte("stale"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	_, err = db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	batch := new(Batch)
	batch.Put([]byte("a"), []byte("1"))
	batch.Delete([]byte("k"))
	require.NoError(t, db.Write(batch))
	require.Equal(t, []string{"a"}, db.Keys())
}
