package quality

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodePNG renders a test image to bytes for Score.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// checkerboard produces a sharp mid-exposure image. Blocks are 10px so
// the edges survive the analysis downscale.
func checkerboard(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			if (x/10+y/10)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func uniform(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestScoreFallbackOnInvalidPixels(t *testing.T) {
	got := Score([]byte("not an image"), []float64{0, 0, 10, 10}, 0.73)
	if got != 0.73 {
		t.Errorf("expected detector confidence fallback 0.73, got %f", got)
	}
}

func TestScoreFallbackOnBadBBox(t *testing.T) {
	data := encodePNG(t, checkerboard(100))

	if got := Score(data, nil, 0.5); got != 0.5 {
		t.Errorf("expected fallback for nil bbox, got %f", got)
	}
	if got := Score(data, []float64{200, 200, 300, 300}, 0.5); got != 0.5 {
		t.Errorf("expected fallback for out-of-frame bbox, got %f", got)
	}
	if got := Score(data, []float64{10, 10, 10, 10}, 0.5); got != 0.5 {
		t.Errorf("expected fallback for empty bbox, got %f", got)
	}
}

func TestScoreFallbackClampsConfidence(t *testing.T) {
	if got := Score(nil, nil, 1.7); got != 1.0 {
		t.Errorf("expected clamped fallback 1.0, got %f", got)
	}
	if got := Score(nil, nil, -0.2); got != 0.0 {
		t.Errorf("expected clamped fallback 0.0, got %f", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	data := encodePNG(t, checkerboard(100))
	bbox := []float64{10, 10, 90, 90}

	first := Score(data, bbox, 0.9)
	for i := 0; i < 5; i++ {
		if got := Score(data, bbox, 0.9); got != first {
			t.Fatalf("score not deterministic: %f vs %f", got, first)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	images := [][]byte{
		encodePNG(t, checkerboard(100)),
		encodePNG(t, uniform(100, color.Black)),
		encodePNG(t, uniform(100, color.White)),
		encodePNG(t, uniform(100, color.Gray{Y: 128})),
	}
	for _, data := range images {
		for _, conf := range []float64{0, 0.5, 1} {
			got := Score(data, []float64{5, 5, 95, 95}, conf)
			if got < 0 || got > 1 {
				t.Errorf("score %f out of [0,1]", got)
			}
		}
	}
}

func TestSharpImageBeatsFlatImage(t *testing.T) {
	bbox := []float64{5, 5, 95, 95}

	sharp := Score(encodePNG(t, checkerboard(100)), bbox, 0.9)
	flat := Score(encodePNG(t, uniform(100, color.Gray{Y: 128})), bbox, 0.9)
	if sharp <= flat {
		t.Errorf("expected sharp image (%f) to outscore flat image (%f)", sharp, flat)
	}
}

func TestUnderexposedPenalized(t *testing.T) {
	bbox := []float64{5, 5, 95, 95}

	mid := Score(encodePNG(t, uniform(100, color.Gray{Y: 128})), bbox, 0.9)
	dark := Score(encodePNG(t, uniform(100, color.Black)), bbox, 0.9)
	if dark >= mid {
		t.Errorf("expected dark image (%f) to score below mid-gray (%f)", dark, mid)
	}
}

func TestTinyFacePenalized(t *testing.T) {
	data := encodePNG(t, checkerboard(200))

	large := Score(data, []float64{10, 10, 190, 190}, 0.9)
	tiny := Score(data, []float64{10, 10, 14, 14}, 0.9)
	if tiny >= large {
		t.Errorf("expected tiny face (%f) to score below large face (%f)", tiny, large)
	}
}
