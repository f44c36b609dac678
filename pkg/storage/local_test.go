package storage

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.SaveStream("book.pdf", bytes.NewReader([]byte("%PDF-1.4 test")))
	require.NoError(t, err)
	require.Equal(t, "book.pdf", name)
	require.True(t, store.Exists("book.pdf"))

	f, err := store.Open("book.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "%PDF-1.4 test", string(data))

	require.NoError(t, store.Delete("book.pdf"))
	require.False(t, store.Exists("book.pdf"))

	// deleting again is not an error
	require.NoError(t, store.Delete("book.pdf"))
}

func TestLocalStoreSweepOrphans(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("kept.pdf", bytes.NewReader([]byte("keep")))
	require.NoError(t, err)
	_, err = store.SaveStream("orphan.pdf", bytes.NewReader([]byte("drop")))
	require.NoError(t, err)

	// a fresh file is never reaped, even when unreferenced
	removed, err := store.SweepOrphans(time.Minute, func(name string) bool { return name == "kept.pdf" })
	require.NoError(t, err)
	require.Empty(t, removed)

	removed, err = store.SweepOrphans(0, func(name string) bool { return name == "kept.pdf" })
	require.NoError(t, err)
	require.Equal(t, []string{"orphan.pdf"}, removed)
	require.True(t, store.Exists("kept.pdf"))
	require.False(t, store.Exists("orphan.pdf"))
}
