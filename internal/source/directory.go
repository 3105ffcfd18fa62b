package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Directory is a local-filesystem provider/sink for desktop-style use:
// references are file names resolved against a root directory, processed
// results land in an output directory with the same base name.
type Directory struct {
	root   string
	outDir string
}

// NewDirectory creates a directory-backed provider/sink. The output
// directory is created on first save.
func NewDirectory(root, outDir string) *Directory {
	return &Directory{root: root, outDir: outDir}
}

// Load opens and decodes the image file behind ref.
func (d *Directory) Load(_ context.Context, ref string) (image.Image, error) {
	img, err := imaging.Open(filepath.Join(d.root, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open source image: %w", err)
	}

	return img, nil
}

// Save writes the processed image into the output directory, picking the
// format from the file extension.
func (d *Directory) Save(_ context.Context, ref string, img image.Image) (string, error) {
	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dst := filepath.Join(d.outDir, filepath.Base(ref))
	if err := imaging.Save(img, dst); err != nil {
		return "", fmt.Errorf("failed to save processed image: %w", err)
	}

	return dst, nil
}
