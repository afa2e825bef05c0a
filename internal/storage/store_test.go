package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "/pictures"

func solidImage(c color.NRGBA) image.Image {
	return imaging.New(64, 64, c)
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func newMemStore(t *testing.T) (afero.Fs, *FileStore) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testDir, 0o755))

	store, err := NewFileStoreWithFs(fs, DefaultConfig(testDir))
	require.NoError(t, err)
	return fs, store
}

// decodeAsset reads and decodes the stored asset.
func decodeAsset(t *testing.T, fs afero.Fs, path string) image.Image {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// assertNoTempFiles checks that only the asset (if any) remains in dir.
func assertNoTempFiles(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()

	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, DefaultFileName, entry.Name(), "unexpected leftover file")
	}
}

func TestFileStore_Store(t *testing.T) {
	t.Parallel()

	fs, store := newMemStore(t)

	err := store.Store(context.Background(), solidImage(red))

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(testDir, DefaultFileName), store.Path())

	img := decodeAsset(t, fs, store.Path())
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
	assertNoTempFiles(t, fs, testDir)
}

func TestFileStore_Store_Overwrites(t *testing.T) {
	t.Parallel()

	fs, store := newMemStore(t)

	require.NoError(t, store.Store(context.Background(), solidImage(red)))
	require.NoError(t, store.Store(context.Background(), solidImage(blue)))

	img := decodeAsset(t, fs, store.Path())
	r, _, b, _ := img.At(32, 32).RGBA()
	assert.Greater(t, b, r, "asset should hold the second image")
	assertNoTempFiles(t, fs, testDir)
}

func TestFileStore_Store_DirectoryErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing directory", func(t *testing.T) {
		store, err := NewFileStoreWithFs(afero.NewMemMapFs(), DefaultConfig("/absent"))
		require.NoError(t, err)

		err = store.Store(context.Background(), solidImage(red))
		assert.ErrorIs(t, err, domain.ErrWrite)
	})

	t.Run("path is a file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/notadir", []byte("x"), 0o644))
		store, err := NewFileStoreWithFs(fs, DefaultConfig("/notadir"))
		require.NoError(t, err)

		err = store.Store(context.Background(), solidImage(red))
		assert.ErrorIs(t, err, domain.ErrWrite)
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		base := afero.NewMemMapFs()
		require.NoError(t, base.MkdirAll(testDir, 0o755))
		store, err := NewFileStoreWithFs(afero.NewReadOnlyFs(base), DefaultConfig(testDir))
		require.NoError(t, err)

		err = store.Store(context.Background(), solidImage(red))
		assert.ErrorIs(t, err, domain.ErrWrite)
	})
}

// failingFile fails every write, like a full disk.
type failingFile struct {
	afero.File
}

func (f *failingFile) Write(p []byte) (int, error) {
	return 0, syscall.ENOSPC
}

// diskFullFs hands out files that cannot be written.
type diskFullFs struct {
	afero.Fs
}

func (fs *diskFullFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &failingFile{File: f}, nil
}

// renameFailFs refuses to rename.
type renameFailFs struct {
	afero.Fs
}

func (fs *renameFailFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EXDEV}
}

func TestFileStore_Store_FailureKeepsPreviousAsset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wrap    func(afero.Fs) afero.Fs
		wantErr error
	}{
		{"disk full", func(fs afero.Fs) afero.Fs { return &diskFullFs{Fs: fs} }, syscall.ENOSPC},
		{"rename fails", func(fs afero.Fs) afero.Fs { return &renameFailFs{Fs: fs} }, syscall.EXDEV},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			base, good := newMemStore(t)
			require.NoError(t, good.Store(context.Background(), solidImage(red)))
			before, err := afero.ReadFile(base, good.Path())
			require.NoError(t, err)

			store, err := NewFileStoreWithFs(tc.wrap(base), DefaultConfig(testDir))
			require.NoError(t, err)

			err = store.Store(context.Background(), solidImage(blue))

			assert.ErrorIs(t, err, domain.ErrWrite)
			assert.ErrorIs(t, err, tc.wantErr)

			after, readErr := afero.ReadFile(base, good.Path())
			require.NoError(t, readErr)
			assert.Equal(t, before, after, "previous asset must be unchanged")
			assertNoTempFiles(t, base, testDir)
		})
	}
}

func TestFileStore_Store_ContextDone(t *testing.T) {
	t.Parallel()

	fs, store := newMemStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Store(ctx, solidImage(red))

	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.ErrorIs(t, err, context.Canceled)
	exists, existsErr := afero.Exists(fs, store.Path())
	require.NoError(t, existsErr)
	assert.False(t, exists)
	assertNoTempFiles(t, fs, testDir)
}

func TestFileStore_Store_NilImage(t *testing.T) {
	t.Parallel()

	_, store := newMemStore(t)

	err := store.Store(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrWrite)
}

func TestNewFileStoreWithFs_Validation(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	tests := []struct {
		name   string
		fs     afero.Fs
		config Config
	}{
		{"nil filesystem", nil, DefaultConfig(testDir)},
		{"empty directory", fs, Config{FileName: DefaultFileName}},
		{"file name with directory", fs, Config{PicturesDir: testDir, FileName: "sub/image.jpg"}},
		{"quality too high", fs, Config{PicturesDir: testDir, JPEGQuality: 101}},
		{"quality negative", fs, Config{PicturesDir: testDir, JPEGQuality: -5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewFileStoreWithFs(tc.fs, tc.config)
			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}

	t.Run("defaults applied", func(t *testing.T) {
		store, err := NewFileStoreWithFs(fs, Config{PicturesDir: testDir})
		require.NoError(t, err)
		assert.Equal(t, DefaultFileName, store.config.FileName)
		assert.Equal(t, 100, store.config.JPEGQuality)
	})
}

func TestNewFileStore_OSFilesystem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.WriteTimeout = 5 * time.Second
	store, err := NewFileStore(cfg)
	require.NoError(t, err)

	require.NoError(t, store.Store(context.Background(), solidImage(red)))

	f, err := os.Open(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
