package source

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/signumlab/sigengine/internal/document"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageSourceSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 120, 80)

	src, err := NewImageSource(path)
	if err != nil {
		t.Fatalf("NewImageSource failed: %v", err)
	}
	defer src.Close()

	if src.PageCount() != 1 {
		t.Fatalf("page count = %d", src.PageCount())
	}
	img, err := src.RenderPage(0, 150)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("rendered bounds = %v", img.Bounds())
	}
}

func TestImageSourceDirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 20, 20)
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)
	writePNG(t, filepath.Join(dir, "c.png"), 30, 30)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewImageSource(dir)
	if err != nil {
		t.Fatalf("NewImageSource failed: %v", err)
	}
	defer src.Close()

	if src.PageCount() != 3 {
		t.Fatalf("page count = %d, want 3 (txt file must be skipped)", src.PageCount())
	}
	// Filename order: a, b, c.
	first, err := src.RenderPage(0, 150)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if first.Bounds().Dx() != 10 {
		t.Errorf("first page width = %d, want a.png's 10", first.Bounds().Dx())
	}
}

func TestTierFor(t *testing.T) {
	tiers := map[string]int{"small": 5, "medium": 20}

	tests := []struct {
		pages int
		want  document.Tier
	}{
		{1, document.TierSmall},
		{5, document.TierSmall},
		{6, document.TierMedium},
		{20, document.TierMedium},
		{21, document.TierLarge},
	}
	for _, tt := range tests {
		if got := TierFor(tt.pages, tiers); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.pages, got, tt.want)
		}
	}
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "p1.png"), 40, 40)
	writePNG(t, filepath.Join(dir, "p2.png"), 40, 40)

	src, err := NewImageSource(dir)
	if err != nil {
		t.Fatalf("NewImageSource failed: %v", err)
	}
	defer src.Close()

	docs, err := Ingest(src, filepath.Join(dir, "contract"), 150, map[string]int{"small": 5, "medium": 20})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	for i, doc := range docs {
		if doc.Format != document.FormatPNG {
			t.Errorf("page %d format = %s", i, doc.Format)
		}
		if doc.PageCount != 2 {
			t.Errorf("page %d total pages = %d", i, doc.PageCount)
		}
		if doc.Tier != document.TierSmall {
			t.Errorf("page %d tier = %s", i, doc.Tier)
		}
		if len(doc.Bytes) == 0 {
			t.Errorf("page %d has no encoded bytes", i)
		}
	}
	if docs[0].SourceID != "contract#p1" || docs[1].SourceID != "contract#p2" {
		t.Errorf("source ids = %q, %q", docs[0].SourceID, docs[1].SourceID)
	}
}

// countingSource reports a fixed page count and tracks render calls.
type countingSource struct {
	pages    int
	rendered int
}

func (s *countingSource) PageCount() int { return s.pages }

func (s *countingSource) RenderPage(index, dpi int) (image.Image, error) {
	s.rendered++
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (s *countingSource) Close() error { return nil }

func TestIngestRejectsOverTierBeforeRendering(t *testing.T) {
	src := &countingSource{pages: 100}

	_, err := Ingest(src, "huge.pdf", 150, map[string]int{"small": 5, "medium": 20})
	if err == nil {
		t.Fatal("over-tier source ingested")
	}
	ve, ok := document.IsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Kind != document.PageLimitExceeded {
		t.Errorf("kind = %s", ve.Kind)
	}
	if src.rendered != 0 {
		t.Errorf("rendered %d pages before rejection", src.rendered)
	}
}

func TestIngestEmptySource(t *testing.T) {
	src, err := NewImageSource(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageSource failed: %v", err)
	}
	defer src.Close()

	if _, err := Ingest(src, "empty", 150, map[string]int{"small": 5}); err == nil {
		t.Error("empty source ingested without error")
	}
}

func TestOpenSelectsImageSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	writePNG(t, path, 10, 10)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if _, ok := src.(*ImageSource); !ok {
		t.Errorf("Open returned %T for a png path", src)
	}
}
