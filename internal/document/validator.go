package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// Validator performs format, size, page-count and integrity checks on
// incoming documents. It is a pure check: no state, no side effects.
type Validator struct {
	MaxBytes  int64
	PageTiers map[string]int
}

// NewValidator creates a validator with the given size limit and
// tier -> max-page mapping.
func NewValidator(maxBytes int64, pageTiers map[string]int) *Validator {
	return &Validator{MaxBytes: maxBytes, PageTiers: pageTiers}
}

// Validate checks a document and decodes its image payload. The checks
// run cheapest-first so oversized or mis-declared payloads are rejected
// before any pixel work.
func (v *Validator) Validate(doc Document) (*ValidatedImage, error) {
	switch doc.Format {
	case FormatPNG, FormatJPEG:
	default:
		return nil, &ValidationError{
			Kind:     UnsupportedFormat,
			SourceID: doc.SourceID,
			Detail:   fmt.Sprintf("format %q not supported", doc.Format),
		}
	}

	if int64(len(doc.Bytes)) > v.MaxBytes {
		return nil, &ValidationError{
			Kind:     SizeExceeded,
			SourceID: doc.SourceID,
			Detail:   fmt.Sprintf("%d bytes exceeds limit %d", len(doc.Bytes), v.MaxBytes),
		}
	}

	limit, ok := v.PageTiers[string(doc.Tier)]
	if !ok {
		return nil, &ValidationError{
			Kind:     PageLimitExceeded,
			SourceID: doc.SourceID,
			Detail:   fmt.Sprintf("tier %q not accepted", doc.Tier),
		}
	}
	if doc.PageCount < 1 || doc.PageCount > limit {
		return nil, &ValidationError{
			Kind:     PageLimitExceeded,
			SourceID: doc.SourceID,
			Detail:   fmt.Sprintf("page count %d outside tier %q limit %d", doc.PageCount, doc.Tier, limit),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(doc.Bytes))
	if err != nil {
		return nil, &ValidationError{
			Kind:     CorruptImage,
			SourceID: doc.SourceID,
			Detail:   "payload not decodable",
			Err:      err,
		}
	}
	if format != string(doc.Format) {
		return nil, &ValidationError{
			Kind:     UnsupportedFormat,
			SourceID: doc.SourceID,
			Detail:   fmt.Sprintf("declared %q but payload is %q", doc.Format, format),
		}
	}

	return &ValidatedImage{Doc: doc, Img: img}, nil
}
