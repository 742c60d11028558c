// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package lvldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alethea-net/oracle/kv"
)

func TestLevelDB(t *testing.T) {
	persistent, err := New(filepath.Join(t.TempDir(), "test.db"), Options{16, 16})
	require.NoError(t, err)
	t.Cleanup(func() { persistent.Close() })

	mem, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	for _, db := range []*LevelDB{persistent, mem} {
		key := []byte("123")
		value := []byte("456")

		require.NoError(t, db.Put(key, value))

		got, err := db.Get(key)
		require.NoError(t, err)
		assert.Equal(t, value, got)

		has, err := db.Has(key)
		require.NoError(t, err)
		assert.True(t, has)

		_, err = db.Get([]byte("missing"))
		assert.True(t, db.IsNotFound(err))

		require.NoError(t, db.Delete(key))
		has, err = db.Has(key)
		require.NoError(t, err)
		assert.False(t, has)
	}
}

func TestLevelDBIterator(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, k := range []string{"a1", "a2", "b1", "c1"} {
		require.NoError(t, db.Put([]byte(k), []byte("v")))
	}

	it := db.NewIterator(kv.Range{Start: []byte("a"), Limit: []byte("b")})
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"a1", "a2"}, keys)
}
