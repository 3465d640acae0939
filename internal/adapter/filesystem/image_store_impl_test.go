package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/repository"
)

func TestCheckRoot(t *testing.T) {
	root := t.TempDir()

	t.Run("existing directory", func(t *testing.T) {
		assert.NoError(t, NewImageStore(root, zaptest.NewLogger(t)).CheckRoot())
	})

	t.Run("missing directory", func(t *testing.T) {
		err := NewImageStore(filepath.Join(root, "nope"), zaptest.NewLogger(t)).CheckRoot()
		assert.ErrorIs(t, err, repository.ErrOutputDirMissing)
	})

	t.Run("regular file", func(t *testing.T) {
		file := filepath.Join(root, "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		err := NewImageStore(file, zaptest.NewLogger(t)).CheckRoot()
		assert.ErrorIs(t, err, repository.ErrOutputDirMissing)
	})
}

func TestSave_WritesNumberedFilePerGroup(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	store := NewImageStore(root, zaptest.NewLogger(t))
	descriptors := []entity.ImageDescriptor{
		{Group: "マリオ", Index: 1, SourceURL: "https://example.com/m1.png"},
		{Group: "マリオ", Index: 2, SourceURL: "https://example.com/m2.png"},
		{Group: "リンク", Index: 1, SourceURL: "https://example.com/l1.png"},
	}

	// --- Act ---
	for _, d := range descriptors {
		saved, err := store.Save(context.Background(), d, []byte(d.String()))
		require.NoError(t, err)
		assert.Equal(t, int64(len(d.String())), saved.Bytes)
		assert.Len(t, saved.SHA256, 64)
	}

	// --- Assert ---
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(filepath.Join(root, "マリオ", "002.png"))
	require.NoError(t, err)
	assert.Equal(t, "ImageDescriptor(マリオ-002)", string(data))
	assert.FileExists(t, filepath.Join(root, "リンク", "001.png"))
}

func TestSave_OverwritesExistingFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "ピーチ"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ピーチ", "001.png"), []byte("old"), 0o644))
	store := NewImageStore(root, zaptest.NewLogger(t))

	saved, err := store.Save(context.Background(), entity.ImageDescriptor{Group: "ピーチ", Index: 1}, []byte("new"))

	require.NoError(t, err)
	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDirName(t *testing.T) {
	assert.Equal(t, "Mr. Game & Watch", DirName("Mr. Game & Watch"))
	assert.Equal(t, "ポケモントレーナー_ゼニガメ", DirName("ポケモントレーナー/ゼニガメ"))
	assert.Equal(t, "a_b", DirName(`a\b`))
	assert.Equal(t, "_..", DirName(".."))
}
