package source

import (
	"bytes"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/signumlab/sigengine/internal/document"
)

// Open picks a source implementation by file extension: .pdf goes
// through MuPDF, anything else is treated as image files.
func Open(path string) (Source, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return NewFitzPDFSource(path)
	}
	return NewImageSource(path)
}

// TierFor maps a page count onto the smallest configured tier that
// accepts it. Documents exceeding every tier get TierLarge, which the
// validator rejects in pilot scope.
func TierFor(pageCount int, tiers map[string]int) document.Tier {
	small, okS := tiers[string(document.TierSmall)]
	medium, okM := tiers[string(document.TierMedium)]
	switch {
	case okS && pageCount <= small:
		return document.TierSmall
	case okM && pageCount <= medium:
		return document.TierMedium
	default:
		return document.TierLarge
	}
}

// Ingest renders every page of a source and packages each page as a
// PNG document carrying the source's total page count and tier. The
// source id is derived from the path so audit records trace back to
// the original file.
func Ingest(src Source, path string, dpi int, tiers map[string]int) ([]document.Document, error) {
	pageCount := src.PageCount()
	if pageCount == 0 {
		return nil, fmt.Errorf("source %s contains no pages", path)
	}

	base := filepath.Base(path)
	tier := TierFor(pageCount, tiers)
	// A document past every tier is rejected before any page is
	// rendered; the validator would refuse each page anyway.
	if tier == document.TierLarge {
		if _, ok := tiers[string(document.TierLarge)]; !ok {
			return nil, &document.ValidationError{
				Kind:     document.PageLimitExceeded,
				SourceID: base,
				Detail:   fmt.Sprintf("%d pages exceeds every configured tier", pageCount),
			}
		}
	}

	docs := make([]document.Document, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		img, err := src.RenderPage(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d of %s: %w", i, path, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d of %s: %w", i, path, err)
		}
		docs = append(docs, document.Document{
			SourceID:  fmt.Sprintf("%s#p%d", base, i+1),
			Bytes:     buf.Bytes(),
			Format:    document.FormatPNG,
			PageCount: pageCount,
			Tier:      tier,
		})
	}
	return docs, nil
}
