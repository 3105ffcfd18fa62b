package effect

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const defaultFontPath = "internal/assets/fonts/DejaVuSans.ttf"

// builtins returns the stock transforms shipped with the registry.
func builtins() map[string]Transform {
	return map[string]Transform{
		"grayscale":  grayscale,
		"invert":     invert,
		"resize":     resize,
		"thumbnail":  thumbnail,
		"blur":       blur,
		"sharpen":    sharpen,
		"rotate":     rotate,
		"flip":       flip,
		"brightness": brightness,
		"contrast":   contrast,
		"gamma":      gamma,
		"border":     border,
		"watermark":  watermark,
	}
}

func intParam(params map[string]string, key string) (int, error) {
	v, err := strconv.Atoi(params[key])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}

	return v, nil
}

func floatParam(params map[string]string, key string) (float64, error) {
	v, err := strconv.ParseFloat(params[key], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}

	return v, nil
}

func grayscale(img image.Image, _ map[string]string) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

func invert(img image.Image, _ map[string]string) (image.Image, error) {
	return imaging.Invert(img), nil
}

// resize scales the image to the given width and height.
func resize(img image.Image, params map[string]string) (image.Image, error) {
	width, err := intParam(params, "width")
	if err != nil {
		return nil, err
	}
	height, err := intParam(params, "height")
	if err != nil {
		return nil, err
	}

	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// thumbnail scales and crops the image to exactly fill the given bounds.
func thumbnail(img image.Image, params map[string]string) (image.Image, error) {
	width, err := intParam(params, "width")
	if err != nil {
		return nil, err
	}
	height, err := intParam(params, "height")
	if err != nil {
		return nil, err
	}

	return imaging.Thumbnail(img, width, height, imaging.Lanczos), nil
}

func blur(img image.Image, params map[string]string) (image.Image, error) {
	sigma, err := floatParam(params, "sigma")
	if err != nil {
		return nil, err
	}

	return imaging.Blur(img, sigma), nil
}

func sharpen(img image.Image, params map[string]string) (image.Image, error) {
	sigma, err := floatParam(params, "sigma")
	if err != nil {
		return nil, err
	}

	return imaging.Sharpen(img, sigma), nil
}

// rotate turns the image counter-clockwise by a multiple of 90 degrees.
func rotate(img image.Image, params map[string]string) (image.Image, error) {
	angle, err := intParam(params, "angle")
	if err != nil {
		return nil, err
	}

	switch angle {
	case 90:
		return imaging.Rotate90(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate270(img), nil
	default:
		return nil, fmt.Errorf("unsupported angle: %d", angle)
	}
}

func flip(img image.Image, params map[string]string) (image.Image, error) {
	switch params["direction"] {
	case "horizontal":
		return imaging.FlipH(img), nil
	case "vertical":
		return imaging.FlipV(img), nil
	default:
		return nil, fmt.Errorf("unsupported flip direction: %q", params["direction"])
	}
}

// brightness adjusts brightness by a percentage in [-100, 100].
func brightness(img image.Image, params map[string]string) (image.Image, error) {
	pct, err := floatParam(params, "percentage")
	if err != nil {
		return nil, err
	}

	return imaging.AdjustBrightness(img, pct), nil
}

// contrast adjusts contrast by a percentage in [-100, 100].
func contrast(img image.Image, params map[string]string) (image.Image, error) {
	pct, err := floatParam(params, "percentage")
	if err != nil {
		return nil, err
	}

	return imaging.AdjustContrast(img, pct), nil
}

func gamma(img image.Image, params map[string]string) (image.Image, error) {
	g, err := floatParam(params, "gamma")
	if err != nil {
		return nil, err
	}

	return imaging.AdjustGamma(img, g), nil
}

// border draws a solid white frame of the given thickness on top of the
// image without changing its dimensions.
func border(img image.Image, params map[string]string) (image.Image, error) {
	thickness, err := floatParam(params, "thickness")
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(img)
	dc.SetColor(color.White)
	dc.SetLineWidth(thickness)
	dc.DrawRectangle(thickness/2, thickness/2, float64(dc.Width())-thickness, float64(dc.Height())-thickness)
	dc.Stroke()

	return dc.Image(), nil
}

// watermark draws text in the bottom-right corner, sized relative to the
// image width.
func watermark(img image.Image, params map[string]string) (image.Image, error) {
	text := params["text"]
	if text == "" {
		text = "Watermark"
	}

	fontPath := params["font"]
	if fontPath == "" {
		fontPath = defaultFontPath
	}

	dc := gg.NewContextForImage(img)
	dc.SetColor(color.White)

	fontSize := float64(dc.Width()) * 0.05 // 5% of the image width

	if err := dc.LoadFontFace(fontPath, fontSize); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	tw, th := dc.MeasureString(text)

	margin := 10.0
	x := float64(dc.Width()) - tw - margin
	y := float64(dc.Height()) - th - margin

	dc.DrawStringAnchored(text, x, y, 1, 1) // bottom-right corner
	dc.Fill()

	return dc.Image(), nil
}
