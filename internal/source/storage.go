package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// fileStorage defines the interface for file storage.
// It allows saving and loading files from a backend (e.g., local FS, S3, MinIO).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Storage adapts a file storage backend into a Provider and Sink,
// decoding on load and encoding processed results as JPEG under a
// dedicated subdirectory.
type Storage struct {
	fileStorage fileStorage
	outSubdir   string
}

// NewStorage creates a storage-backed provider/sink. Processed images are
// written under outSubdir, keeping the source's base filename.
func NewStorage(fs fileStorage, outSubdir string) *Storage {
	return &Storage{fileStorage: fs, outSubdir: outSubdir}
}

// Load fetches and decodes the image stored at ref.
func (s *Storage) Load(ctx context.Context, ref string) (image.Image, error) {
	reader, err := s.fileStorage.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image: %w", err)
	}
	defer reader.Close()

	img, err := imaging.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// Save encodes the processed image as JPEG and stores it next to the
// other processed results.
func (s *Storage) Save(ctx context.Context, ref string, img image.Image) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, img, imaging.JPEG); err != nil {
		return "", fmt.Errorf("failed to encode processed image: %w", err)
	}

	dst, err := s.fileStorage.Save(ctx, s.outSubdir, filepath.Base(ref), buf)
	if err != nil {
		return "", fmt.Errorf("failed to save processed image: %w", err)
	}

	return dst, nil
}
