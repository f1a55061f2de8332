package detect

import (
	"image"
	"image/color"
	"testing"
)

// signatureImage draws a wide white stroke block on black, roughly the
// geometry of a signature line.
func signatureImage(w, h int, rect image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestContrastDetectorFindsSingleRegion(t *testing.T) {
	img := signatureImage(400, 200, image.Rect(60, 80, 270, 150))

	detector := NewContrastDetector()
	regions, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(regions) != 1 {
		t.Fatalf("expected exactly one region, got %d", len(regions))
	}

	r := regions[0]
	if r.Area() <= 0 {
		t.Errorf("region area must be positive, got %d", r.Area())
	}
	if r.Crop == nil {
		t.Error("region crop missing")
	}
	if r.Confidence <= 0 || r.Confidence > 1 {
		t.Errorf("confidence outside (0,1]: %f", r.Confidence)
	}
	if r.Bounds.Dx() < 180 || r.Bounds.Dy() < 50 {
		t.Errorf("region too small: %v", r.Bounds)
	}
}

func TestContrastDetectorDeterministic(t *testing.T) {
	img := signatureImage(300, 150, image.Rect(40, 50, 220, 110))
	detector := NewContrastDetector()

	first, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("region count changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Bounds != second[i].Bounds {
			t.Errorf("region %d bounds changed: %v vs %v", i, first[i].Bounds, second[i].Bounds)
		}
		if first[i].Confidence != second[i].Confidence {
			t.Errorf("region %d confidence changed", i)
		}
	}
}

func TestContrastDetectorEmptyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 100))

	detector := NewContrastDetector()
	regions, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected no regions on a blank page, got %d", len(regions))
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false}, // default
		{"ml", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if detector == nil {
				t.Error("expected detector, got nil")
			}
		})
	}
}
