package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Vision models look at downscaled previews, so preview quality can stay
// modest and resizing cheap.
const previewJPEGQuality = 80

// ResizeImage downscales an image so neither side exceeds maxSize and
// re-encodes it as JPEG, the format every caption provider accepts.
// Images already within bounds are re-encoded without scaling.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)

	if width != bounds.Dx() || height != bounds.Dy() {
		preview := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(preview, preview.Bounds(), img, bounds, draw.Over, nil)
		img = preview
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin shrinks (w, h) proportionally until both fit max. Dimensions
// already within bounds are returned unchanged; upscaling never happens.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w > h {
		return max, int(float64(h) * float64(max) / float64(w))
	}
	return int(float64(w) * float64(max) / float64(h)), max
}
