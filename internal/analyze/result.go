package analyze

import (
	"image"
	"time"

	"github.com/signumlab/sigengine/internal/model"
)

// AnalysisResult is the immutable outcome of classifying one detected
// signature region.
type AnalysisResult struct {
	ID            string
	SourceID      string
	Bounds        image.Rectangle
	Label         model.StyleLabel
	Quality       float64 // 0.0-1.0, legibility of the signature image
	Confidence    float64 // 0.0-1.0, certainty in Label
	LowConfidence bool    // confidence under the configured floor; surfaced, never suppressed
	ModelVersion  string
	Timestamp     time.Time
}

// Verdict is the discrete outcome of a pairwise comparison.
type Verdict string

const (
	VerdictMatch        Verdict = "match"
	VerdictNoMatch      Verdict = "no-match"
	VerdictInconclusive Verdict = "inconclusive"
)

// ComparisonResult is the immutable outcome of comparing two signature
// feature vectors. The thresholds that produced the verdict travel
// with the result so downstream consumers can audit the decision.
type ComparisonResult struct {
	ID               string
	SourceA          string
	SourceB          string
	Similarity       float64 // 0.0-1.0
	Verdict          Verdict
	MatchThreshold   float64
	NoMatchThreshold float64
	ModelVersion     string
	Timestamp        time.Time
}

// Recorder receives every produced result for compliance logging. The
// audit sink implements it; a nil recorder disables auditing. Recording
// never fails the originating analysis.
type Recorder interface {
	RecordAnalysis(res AnalysisResult)
	RecordComparison(res ComparisonResult)
}
