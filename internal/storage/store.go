package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/spf13/afero"
)

// DefaultFileName is the name of the stored asset.
const DefaultFileName = "downloaded_image.jpg"

// Store persists a decoded image.
type Store interface {
	Store(ctx context.Context, img image.Image) error
}

// Config holds configuration for FileStore.
type Config struct {
	// PicturesDir is the directory that holds the asset. It must already exist.
	PicturesDir string

	// FileName is the asset's file name inside PicturesDir.
	FileName string

	// JPEGQuality is the encoder quality, 1-100.
	JPEGQuality int

	// WriteTimeout bounds encoding and writing. Zero means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config writing downloaded_image.jpg at quality 100
// into picturesDir.
func DefaultConfig(picturesDir string) Config {
	return Config{
		PicturesDir:  picturesDir,
		FileName:     DefaultFileName,
		JPEGQuality:  100,
		WriteTimeout: 30 * time.Second,
	}
}

// FileStore writes images as JPEG files through an afero.Fs.
type FileStore struct {
	fs     afero.Fs
	config Config
}

// NewFileStore creates a FileStore on the OS filesystem.
func NewFileStore(config Config) (*FileStore, error) {
	return NewFileStoreWithFs(afero.NewOsFs(), config)
}

// NewFileStoreWithFs creates a FileStore on the given filesystem.
func NewFileStoreWithFs(fs afero.Fs, config Config) (*FileStore, error) {
	if fs == nil {
		return nil, fmt.Errorf("storage: filesystem cannot be nil")
	}
	if config.PicturesDir == "" {
		return nil, fmt.Errorf("storage: pictures directory cannot be empty")
	}
	if config.FileName == "" {
		config.FileName = DefaultFileName
	}
	if config.FileName != filepath.Base(config.FileName) {
		return nil, fmt.Errorf("storage: file name %q must not contain a directory", config.FileName)
	}
	if config.JPEGQuality == 0 {
		config.JPEGQuality = 100
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return nil, fmt.Errorf("storage: JPEG quality %d out of range 1-100", config.JPEGQuality)
	}

	return &FileStore{
		fs:     fs,
		config: config,
	}, nil
}

// Path returns the full path of the asset.
func (s *FileStore) Path() string {
	return filepath.Join(s.config.PicturesDir, s.config.FileName)
}

// Store encodes img as JPEG and replaces the asset with it. Every failure wraps
// domain.ErrWrite and leaves any previous asset untouched.
func (s *FileStore) Store(ctx context.Context, img image.Image) (err error) {
	if img == nil {
		return fmt.Errorf("%w: nil image", domain.ErrWrite)
	}

	if s.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.WriteTimeout)
		defer cancel()
	}

	log := logger.FromContext(ctx).With("path", s.Path())

	info, err := s.fs.Stat(s.config.PicturesDir)
	if err != nil {
		return fmt.Errorf("%w: pictures directory not accessible: %w", domain.ErrWrite, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrWrite, s.config.PicturesDir)
	}

	tmp, err := afero.TempFile(s.fs, s.config.PicturesDir, "."+s.config.FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file: %w", domain.ErrWrite, err)
	}
	tmpName := tmp.Name()
	closed := false

	defer func() {
		if !closed {
			if closeErr := tmp.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("%w: closing temporary file: %w", domain.ErrWrite, closeErr)
			}
		}
		if err != nil {
			if removeErr := s.fs.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
				log.Warn("failed to remove temporary file", "temp_path", tmpName, "error", removeErr)
			}
		}
	}()

	counter := &countingWriter{ctx: ctx, w: tmp}
	if err = imaging.Encode(counter, img, imaging.JPEG, imaging.JPEGQuality(s.config.JPEGQuality)); err != nil {
		return fmt.Errorf("%w: encoding JPEG: %w", domain.ErrWrite, err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: flushing temporary file: %w", domain.ErrWrite, err)
	}

	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temporary file: %w", domain.ErrWrite, err)
	}

	if err = ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}

	if err = s.fs.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("%w: replacing asset: %w", domain.ErrWrite, err)
	}

	log.Debug("image stored", "bytes", counter.n, "quality", s.config.JPEGQuality)
	return nil
}

// countingWriter counts bytes written and stops writing once ctx is done, which
// is how the write timeout reaches the encoder.
type countingWriter struct {
	ctx context.Context
	w   io.Writer
	n   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
