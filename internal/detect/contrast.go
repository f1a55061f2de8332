package detect

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ContrastDetector finds signature strokes by edge detection: contrast
// enhancement, Sobel gradients, morphological dilation to join strokes
// into blobs, then connected-component extraction. Blobs are filtered
// by area and by signature-shaped geometry before deduplication.
type ContrastDetector struct {
	MinRegionArea    int     // Minimum area in pixels²
	EdgeThreshold    float64 // Gradient magnitude threshold
	OverlapThreshold float64 // IoU above which overlapping regions dedup
}

// NewContrastDetector creates a detector with default tuning.
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinRegionArea:    500, // ~22x22 pixels minimum
		EdgeThreshold:    30.0,
		OverlapThreshold: 0.3,
	}
}

// Signature blobs are wider than tall but not line-thin. Stamps and
// dense ink blocks fall outside the ink-ratio band.
const (
	minAspect   = 0.8
	maxAspect   = 12.0
	minInkRatio = 0.02
	maxInkRatio = 0.65
)

// Detect returns deduplicated signature candidates. Zero candidates is
// a valid outcome, not an error.
func (d *ContrastDetector) Detect(img image.Image) ([]Region, error) {
	// Enhancement before edge detection sharpens faint pen strokes
	// without disturbing determinism (pure pixel math).
	enhanced := imaging.AdjustContrast(imaging.Grayscale(img), 15)

	gray := toGray(enhanced)
	edges := sobel(gray, d.EdgeThreshold)
	blobs := dilate(edges, 5, 2)
	boxes := components(blobs)

	regions := []Region{}
	for _, rect := range boxes {
		area := rect.Dx() * rect.Dy()
		if area < d.MinRegionArea {
			continue
		}

		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < minAspect || aspect > maxAspect {
			continue
		}

		ink := inkRatio(edges, rect)
		if ink < minInkRatio || ink > maxInkRatio {
			continue
		}

		regions = append(regions, Region{
			Bounds:     rect,
			Crop:       imaging.Crop(img, rect),
			Confidence: scoreCandidate(aspect, ink),
		})
	}

	return Dedup(regions, d.OverlapThreshold), nil
}

// scoreCandidate rates how signature-like the blob geometry is. The
// sweet spot is a 3:1 box with moderate stroke coverage.
func scoreCandidate(aspect, ink float64) float64 {
	aspectScore := 1.0 - math.Min(math.Abs(aspect-3.0)/9.0, 1.0)
	inkScore := 1.0 - math.Min(math.Abs(ink-0.18)/0.5, 1.0)
	score := 0.4 + 0.35*aspectScore + 0.25*inkScore
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// inkRatio measures the fraction of edge pixels inside rect.
func inkRatio(edges *image.Gray, rect image.Rectangle) float64 {
	total := rect.Dx() * rect.Dy()
	if total == 0 {
		return 0
	}
	on := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if edges.GrayAt(x, y).Y > 128 {
				on++
			}
		}
	}
	return float64(on) / float64(total)
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

// sobel applies the Sobel operator and thresholds gradient magnitude.
func sobel(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	gx := [][]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [][]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64

			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			magnitude := math.Sqrt(sumX*sumX + sumY*sumY)

			if magnitude > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			} else {
				edges.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	return edges
}

// dilate joins nearby strokes so one signature becomes one blob.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			result.SetGray(x, y, img.GrayAt(x, y))
		}
	}

	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)

		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y++ {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x++ {
				maxVal := uint8(0)

				for ky := -half; ky <= half; ky++ {
					for kx := -half; kx <= half; kx++ {
						val := result.GrayAt(x+kx, y+ky).Y
						if val > maxVal {
							maxVal = val
						}
					}
				}

				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}

		result = temp
	}

	return result
}

// components finds bounding rectangles of connected white regions.
func components(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	boxes := []image.Rectangle{}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[y-bounds.Min.Y][x-bounds.Min.X] {
				rect := floodFill(img, visited, x, y)
				boxes = append(boxes, rect)
			}
		}
	}

	return boxes
}

// floodFill walks one connected component and returns its bounds.
func floodFill(img *image.Gray, visited [][]bool, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y <= 128 {
			continue
		}

		visited[y-bounds.Min.Y][x-bounds.Min.X] = true

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
