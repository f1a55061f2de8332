package document

import "image"

// Format is the declared payload format of a document image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Tier names the processing tier a document was submitted under. Tiers
// bound the page count a document may declare; tiers absent from the
// configured map (e.g. "large" in the pilot) are rejected outright.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Document is a single document image as submitted for analysis. It is
// immutable once ingested: the pipeline reads Bytes but never writes.
type Document struct {
	SourceID  string
	Bytes     []byte
	Format    Format
	PageCount int
	Tier      Tier
}

// ValidatedImage is the output of validation: the decoded pixels plus
// the document they came from. Decoding happens exactly once here; all
// later stages work on Img.
type ValidatedImage struct {
	Doc Document
	Img image.Image
}
