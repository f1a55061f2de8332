package feature

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/signumlab/sigengine/internal/detect"
)

// rasterSize is the side of the square grayscale raster every region
// is normalized to before feature computation.
const rasterSize = 64

const gridCells = 4 // 4x4 ink grid

// Extractor converts signature regions into fv1 vectors. Extraction is
// deterministic: identical region pixels always yield identical values.
type Extractor struct {
	version string
}

// NewExtractor returns an extractor producing vectors tagged with the
// current feature version.
func NewExtractor() *Extractor {
	return &Extractor{version: Version}
}

// Extract computes the fv1 vector for a region.
func (e *Extractor) Extract(region detect.Region) (Vector, error) {
	if region.Crop == nil || region.Bounds.Empty() {
		return Vector{}, fmt.Errorf("region %s has no pixels", region.SourceID)
	}

	raster := getRaster()
	defer putRaster(raster)

	// CatmullRom gives stable, high-quality downscaling; the raster is
	// fully overwritten so pooled reuse is safe.
	draw.CatmullRom.Scale(raster, raster.Bounds(), region.Crop, region.Crop.Bounds(), draw.Src, nil)

	gray := make([]float64, rasterSize*rasterSize)
	var sum float64
	for y := 0; y < rasterSize; y++ {
		for x := 0; x < rasterSize; x++ {
			g := color.GrayModel.Convert(raster.At(x, y)).(color.Gray)
			v := float64(g.Y)
			gray[y*rasterSize+x] = v
			sum += v
		}
	}
	mean := sum / float64(len(gray))

	// Ink = darker than the raster mean. Blank rasters have no ink.
	ink := make([]bool, len(gray))
	inkCount := 0
	for i, v := range gray {
		if v < mean-1 {
			ink[i] = true
			inkCount++
		}
	}

	values := make([]float64, 0, Dim)
	values = append(values, aspectFeature(region.Bounds))
	values = append(values, float64(inkCount)/float64(len(gray)))
	values = append(values, strokeDensity(ink))
	cx, cy := centroid(ink)
	values = append(values, cx, cy)
	values = append(values, extent(ink))
	values = append(values, inkGrid(ink)...)

	return Vector{Version: e.version, Values: values}, nil
}

// aspectFeature maps width/height onto [0,1] against the widest
// signature shape the detector accepts.
func aspectFeature(b image.Rectangle) float64 {
	if b.Dy() == 0 {
		return 0
	}
	a := float64(b.Dx()) / float64(b.Dy()) / 12.0
	if a > 1 {
		a = 1
	}
	return a
}

// strokeDensity counts horizontal ink transitions, a proxy for stroke
// count and writing complexity.
func strokeDensity(ink []bool) float64 {
	transitions := 0
	for y := 0; y < rasterSize; y++ {
		for x := 1; x < rasterSize; x++ {
			if ink[y*rasterSize+x] != ink[y*rasterSize+x-1] {
				transitions++
			}
		}
	}
	// Normalize by the worst case of alternating pixels on every row.
	return float64(transitions) / float64(rasterSize*(rasterSize-1))
}

// centroid returns the mean ink position in raster-relative [0,1].
func centroid(ink []bool) (float64, float64) {
	var sx, sy, n float64
	for y := 0; y < rasterSize; y++ {
		for x := 0; x < rasterSize; x++ {
			if ink[y*rasterSize+x] {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return 0.5, 0.5
	}
	return sx / n / float64(rasterSize-1), sy / n / float64(rasterSize-1)
}

// extent is the fraction of the raster covered by the tight ink box.
func extent(ink []bool) float64 {
	minX, minY := rasterSize, rasterSize
	maxX, maxY := -1, -1
	for y := 0; y < rasterSize; y++ {
		for x := 0; x < rasterSize; x++ {
			if !ink[y*rasterSize+x] {
				continue
			}
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
		}
	}
	if maxX < 0 {
		return 0
	}
	return float64((maxX-minX+1)*(maxY-minY+1)) / float64(rasterSize*rasterSize)
}

// inkGrid returns per-cell ink fractions for a gridCells x gridCells
// partition of the raster, row-major.
func inkGrid(ink []bool) []float64 {
	cell := rasterSize / gridCells
	grid := make([]float64, gridCells*gridCells)
	for gy := 0; gy < gridCells; gy++ {
		for gx := 0; gx < gridCells; gx++ {
			count := 0
			for y := gy * cell; y < (gy+1)*cell; y++ {
				for x := gx * cell; x < (gx+1)*cell; x++ {
					if ink[y*rasterSize+x] {
						count++
					}
				}
			}
			grid[gy*gridCells+gx] = float64(count) / float64(cell*cell)
		}
	}
	return grid
}
