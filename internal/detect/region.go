package detect

import "image"

// Region is a detected sub-area of a document image believed to
// contain a signature. It references its document by source id only;
// the region never owns the document's lifetime. Crop holds the
// extracted pixels and is read-only after detection.
type Region struct {
	SourceID   string
	Bounds     image.Rectangle
	Crop       image.Image
	Confidence float64 // detector's own confidence, 0.0-1.0
}

// Area returns the bounding box area in pixels.
func (r Region) Area() int {
	return r.Bounds.Dx() * r.Bounds.Dy()
}

// Detector locates candidate signature regions in a validated image.
// Implementations must be deterministic for identical input pixels.
type Detector interface {
	Detect(img image.Image) ([]Region, error)
}
