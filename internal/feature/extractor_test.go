package feature

import (
	"image"
	"image/color"
	"testing"

	"github.com/signumlab/sigengine/internal/detect"
)

func strokeRegion(w, h int, strokes []image.Rectangle) detect.Region {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for _, s := range strokes {
		for y := s.Min.Y; y < s.Max.Y; y++ {
			for x := s.Min.X; x < s.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return detect.Region{
		SourceID:   "test",
		Bounds:     image.Rect(0, 0, w, h),
		Crop:       img,
		Confidence: 0.8,
	}
}

func TestExtractShape(t *testing.T) {
	region := strokeRegion(240, 80, []image.Rectangle{
		image.Rect(20, 30, 200, 38),
		image.Rect(40, 15, 48, 60),
		image.Rect(120, 20, 126, 55),
	})

	vec, err := NewExtractor().Extract(region)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if vec.Version != Version {
		t.Errorf("version = %q, want %q", vec.Version, Version)
	}
	if len(vec.Values) != Dim {
		t.Fatalf("dimensionality = %d, want %d", len(vec.Values), Dim)
	}
	for i, v := range vec.Values {
		if v < 0 || v > 1 {
			t.Errorf("value %d = %f outside [0,1]", i, v)
		}
	}
	if err := vec.CheckShape(Version); err != nil {
		t.Errorf("CheckShape on fresh vector: %v", err)
	}
}

func TestExtractDeterministic(t *testing.T) {
	region := strokeRegion(200, 70, []image.Rectangle{
		image.Rect(10, 25, 180, 32),
		image.Rect(60, 10, 66, 60),
	})
	extractor := NewExtractor()

	a, err := extractor.Extract(region)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := extractor.Extract(region)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("value %d differs between runs: %v vs %v", i, a.Values[i], b.Values[i])
		}
	}
}

func TestExtractDistinguishesShapes(t *testing.T) {
	extractor := NewExtractor()

	wide, err := extractor.Extract(strokeRegion(300, 60, []image.Rectangle{
		image.Rect(10, 25, 290, 35),
	}))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	dense, err := extractor.Extract(strokeRegion(100, 90, []image.Rectangle{
		image.Rect(10, 10, 90, 80),
	}))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	same := true
	for i := range wide.Values {
		if wide.Values[i] != dense.Values[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct shapes produced identical vectors")
	}
}

func TestExtractRejectsEmptyRegion(t *testing.T) {
	_, err := NewExtractor().Extract(detect.Region{SourceID: "empty"})
	if err == nil {
		t.Fatal("expected error for region without pixels")
	}
}

func TestCheckShapeErrors(t *testing.T) {
	good := Vector{Version: Version, Values: make([]float64, Dim)}
	if err := good.CheckShape(Version); err != nil {
		t.Errorf("well-formed vector rejected: %v", err)
	}

	skewed := Vector{Version: "fv0", Values: make([]float64, Dim)}
	if err := skewed.CheckShape(Version); err == nil {
		t.Error("version skew not detected")
	} else if _, ok := err.(*VersionError); !ok {
		t.Errorf("expected VersionError, got %T", err)
	}

	short := Vector{Version: Version, Values: make([]float64, 3)}
	if err := short.CheckShape(Version); err == nil {
		t.Error("shape mismatch not detected")
	} else if _, ok := err.(*ShapeError); !ok {
		t.Errorf("expected ShapeError, got %T", err)
	}
}
