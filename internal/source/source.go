// Package source supplies image data to workers and receives processed
// results back. Providers resolve a source reference to decoded pixels;
// sinks persist a processed buffer and return where it went.
package source

import (
	"context"
	"image"
)

// Provider loads the source image behind a reference. Load failures are
// treated by the worker as per-image errors.
type Provider interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Sink stores a processed image and returns the destination path.
type Sink interface {
	Save(ctx context.Context, ref string, img image.Image) (string, error)
}
