package wal

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func TestWriteFlushReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(record{Seq: i, Note: "entry"}))
	}
	require.NoError(t, w.Flush())

	var got []record
	err = w.ReadAll(func(raw []byte) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.Seq)
	}
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 0}))
	require.NoError(t, w.Close())

	w2, err := Open(path)
	require.NoError(t, err)
	defer w2.Close()
	require.NoError(t, w2.Write(record{Seq: 1}))
	require.NoError(t, w2.Flush())

	count := 0
	require.NoError(t, w2.ReadAll(func(raw []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)
}

func TestWriteAfterReadAllStaysAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(record{Seq: 0}))
	require.NoError(t, w.Flush())
	require.NoError(t, w.ReadAll(func([]byte) error { return nil }))

	require.NoError(t, w.Write(record{Seq: 1}))
	require.NoError(t, w.Flush())

	count := 0
	require.NoError(t, w.ReadAll(func([]byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)
}

func TestDiscardDropsBufferedWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(record{Seq: 0}))
	require.NoError(t, w.Flush())

	require.NoError(t, w.Write(record{Seq: 1}))
	w.Discard()
	require.NoError(t, w.Flush())

	count := 0
	require.NoError(t, w.ReadAll(func([]byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}
