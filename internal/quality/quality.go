package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Fixed weights for the combined score. They sum to 1 so the result
// stays in [0,1].
const (
	weightSharpness  = 0.35
	weightLighting   = 0.25
	weightSize       = 0.20
	weightConfidence = 0.20
)

const (
	// Laplacian variance above this counts as fully sharp.
	sharpnessNorm = 350.0
	// Faces covering at least this fraction of the frame get the full
	// size score.
	fullSizeArea = 0.05
	// Face crops are scaled to this edge length before analysis so the
	// score does not depend on source resolution.
	analysisSize = 64
)

// Score computes a quality score in [0,1] for one detected face.
// It combines a blur estimate, a lighting estimate, the face's relative
// size within the frame and the detector's own confidence. Deterministic
// given identical input. It never fails; when the pixel data cannot be
// decoded or the bounding box is unusable it degrades to the detector
// confidence alone.
func Score(imageData []byte, bbox []float64, detConfidence float64) float64 {
	fallback := clamp01(detConfidence)

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return fallback
	}

	crop, relArea, ok := cropFace(img, bbox)
	if !ok {
		return fallback
	}

	gray := toGray(resize(crop, analysisSize, analysisSize))

	score := weightSharpness*sharpnessScore(gray) +
		weightLighting*lightingScore(gray) +
		weightSize*sizeScore(relArea) +
		weightConfidence*fallback

	return clamp01(score)
}

// cropFace extracts the face region and returns it together with the
// face area relative to the full frame.
func cropFace(img image.Image, bbox []float64) (image.Image, float64, bool) {
	if len(bbox) != 4 {
		return nil, 0, false
	}

	bounds := img.Bounds()
	frameArea := float64(bounds.Dx()) * float64(bounds.Dy())
	if frameArea <= 0 {
		return nil, 0, false
	}

	x1 := int(math.Floor(bbox[0]))
	y1 := int(math.Floor(bbox[1]))
	x2 := int(math.Ceil(bbox[2]))
	y2 := int(math.Ceil(bbox[3]))

	rect := image.Rect(x1, y1, x2, y2).Intersect(bounds)
	if rect.Dx() < 2 || rect.Dy() < 2 {
		return nil, 0, false
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)

	relArea := float64(rect.Dx()) * float64(rect.Dy()) / frameArea
	return crop, relArea, true
}

// sharpnessScore estimates blur via the variance of a 4-neighbor
// Laplacian. Flat or defocused crops score near zero.
func sharpnessScore(gray [][]float64) float64 {
	width := len(gray)
	height := len(gray[0])

	var sum, sumSq float64
	var n int
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			lap := 4*gray[x][y] - gray[x-1][y] - gray[x+1][y] - gray[x][y-1] - gray[x][y+1]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return clamp01(variance / sharpnessNorm)
}

// lightingScore penalizes under- and over-exposed crops by distance of
// the mean luma from mid-gray.
func lightingScore(gray [][]float64) float64 {
	var sum float64
	var n int
	for x := range gray {
		for y := range gray[x] {
			sum += gray[x][y]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return clamp01(1 - math.Abs(mean-128)/128)
}

// sizeScore penalizes very small faces.
func sizeScore(relArea float64) float64 {
	return clamp01(relArea / fullSizeArea)
}

// resize scales an image to the specified dimensions.
func resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGray converts an image to a 2D array of grayscale values (0-255).
func toGray(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
