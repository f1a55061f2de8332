package feature

import "fmt"

// Version identifies the feature layout. Dimensionality and feature
// semantics are fixed per version; extraction and classification must
// agree on it exactly.
const Version = "fv1"

// Dim is the fv1 vector length: six global features (aspect ratio,
// ink coverage, stroke density, centroid x, centroid y, extent)
// followed by a 4x4 normalized-ink grid.
const Dim = 22

// fv1 value indices. Consumers address features by these, never by
// bare offsets.
const (
	IdxAspect = iota
	IdxInkCoverage
	IdxStrokeDensity
	IdxCentroidX
	IdxCentroidY
	IdxExtent
	IdxGridStart // 16 grid cells, row-major
)

// Vector is an ordered, fixed-dimensionality numeric summary of a
// signature region. It is owned exclusively by the pipeline invocation
// that produced it and is never shared across requests.
type Vector struct {
	Version string
	Values  []float64
}

// CheckShape verifies the vector matches wantVersion and the fv1
// dimensionality. A mismatched version is an IncompatibleModelVersion
// error; a wrong length is a FeatureShapeMismatch. Neither is ever
// silently coerced.
func (v Vector) CheckShape(wantVersion string) error {
	if v.Version != wantVersion {
		return &VersionError{Got: v.Version, Want: wantVersion}
	}
	if len(v.Values) != Dim {
		return &ShapeError{Got: len(v.Values), Want: Dim}
	}
	return nil
}

// VersionError reports extraction/classification version skew
// (IncompatibleModelVersion).
type VersionError struct {
	Got  string
	Want string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("incompatible model version: vector is %q, model wants %q", e.Got, e.Want)
}

// ShapeError reports a malformed or wrong-dimension vector
// (FeatureShapeMismatch). Fatal for the item, never retried.
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("feature shape mismatch: got %d values, want %d", e.Got, e.Want)
}
