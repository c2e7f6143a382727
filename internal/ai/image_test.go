package ai

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestResizeImageShrinks(t *testing.T) {
	data, err := ResizeImage(testPNG(t), 32)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("expected width 32, got %d", img.Bounds().Dx())
	}
	if img.Bounds().Dy() != 24 {
		t.Errorf("expected aspect ratio preserved (height 24), got %d", img.Bounds().Dy())
	}
}

func TestResizeImageSmallInputReencoded(t *testing.T) {
	data, err := ResizeImage(testPNG(t), 200)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg re-encode, got %s", format)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("expected original dimensions, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestResizeImageInvalidInput(t *testing.T) {
	if _, err := ResizeImage([]byte("garbage"), 100); err == nil {
		t.Error("expected error for undecodable input")
	}
}
