package effect

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchpix/batchpix/internal/model"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}

	return img
}

func TestRegistry_ApplyGrayscale(t *testing.T) {
	r := NewRegistry()

	out, err := r.Apply(testImage(8, 8), model.NewOperation("grayscale", nil))
	require.NoError(t, err)

	// Every pixel must have equal channels after grayscaling.
	c := color.NRGBAModel.Convert(out.At(3, 5)).(color.NRGBA)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
}

func TestRegistry_ApplyInvertIsInvolution(t *testing.T) {
	r := NewRegistry()
	src := testImage(4, 4)
	inv := model.NewOperation("invert", nil)

	once, err := r.Apply(src, inv)
	require.NoError(t, err)
	twice, err := r.Apply(once, inv)
	require.NoError(t, err)

	want := color.NRGBAModel.Convert(src.At(1, 2)).(color.NRGBA)
	got := color.NRGBAModel.Convert(twice.At(1, 2)).(color.NRGBA)
	assert.Equal(t, want, got)
}

func TestRegistry_ApplyResize(t *testing.T) {
	r := NewRegistry()

	out, err := r.Apply(testImage(40, 20), model.NewOperation("resize", map[string]string{
		"width":  "20",
		"height": "10",
	}))
	require.NoError(t, err)

	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())
}

func TestRegistry_ApplyRotateSwapsBounds(t *testing.T) {
	r := NewRegistry()

	out, err := r.Apply(testImage(30, 10), model.NewOperation("rotate", map[string]string{"angle": "90"}))
	require.NoError(t, err)

	assert.Equal(t, 10, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
}

func TestRegistry_ApplyBorderKeepsBounds(t *testing.T) {
	r := NewRegistry()

	out, err := r.Apply(testImage(16, 16), model.NewOperation("border", map[string]string{"thickness": "2"}))
	require.NoError(t, err)

	assert.Equal(t, 16, out.Bounds().Dx())
	assert.Equal(t, 16, out.Bounds().Dy())
}

func TestRegistry_InvalidParams(t *testing.T) {
	r := NewRegistry()

	_, err := r.Apply(testImage(4, 4), model.NewOperation("resize", map[string]string{"width": "wide"}))
	require.Error(t, err)

	_, err = r.Apply(testImage(4, 4), model.NewOperation("rotate", map[string]string{"angle": "45"}))
	require.Error(t, err)

	_, err = r.Apply(testImage(4, 4), model.NewOperation("flip", map[string]string{"direction": "diagonal"}))
	require.Error(t, err)
}

func TestRegistry_UnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Apply(testImage(4, 4), model.NewOperation("sepia", nil))
	require.ErrorIs(t, err, ErrUnknownEffect)
}

func TestRegistry_RegisterCustomTransform(t *testing.T) {
	r := NewRegistry()

	r.Register("identity", func(img image.Image, _ map[string]string) (image.Image, error) {
		return img, nil
	})

	src := testImage(4, 4)
	out, err := r.Apply(src, model.NewOperation("identity", nil))
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Contains(t, r.Kinds(), "identity")
}
