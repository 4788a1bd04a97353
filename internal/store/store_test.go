package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "uploads"))
	require.NoError(t, err)

	stores := map[string]Store{
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx)
			assert.ErrorIs(t, err, ErrTemplateNotFound)

			require.NoError(t, s.Put(ctx, []byte("first")))
			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), got)

			require.NoError(t, s.Put(ctx, []byte("second")))
			got, err = s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)
		})
	}
}

func TestFileStore_CreatesDirectoryLazily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "directory should not exist before first put")

	require.NoError(t, s.Put(context.Background(), []byte("%PDF-1.4")))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, TemplateFileName), s.Path())
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Put(context.Background(), data))
	data[0] = 'x'

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestGet_CanceledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
