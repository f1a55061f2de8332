package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signumlab/sigengine/internal/detect"
	"github.com/signumlab/sigengine/internal/document"
	"github.com/signumlab/sigengine/internal/feature"
	"github.com/signumlab/sigengine/internal/model"
)

// ErrNoSignature is returned by comparison entry points when a
// document yields no detectable signature region. Single-document
// analysis reports an empty result set instead; only comparison treats
// absence as failure.
var ErrNoSignature = errors.New("no signature region detected")

// RegionResult pairs a detected region with its analysis outcome.
type RegionResult struct {
	Region detect.Region
	Result AnalysisResult
}

// Pipeline runs the single-document path (validate, detect, extract,
// classify) and the pairwise comparison path. One pipeline is shared
// across workers; per-invocation data (regions, vectors, results) is
// owned by the caller and never cached across requests.
type Pipeline struct {
	validator *document.Validator
	detector  detect.Detector
	extractor *feature.Extractor
	model     model.Model

	confidenceFloor  float64
	matchThreshold   float64
	noMatchThreshold float64

	recorder Recorder
	log      *slog.Logger
}

// Options carries the tunable policy knobs for a pipeline.
type Options struct {
	ConfidenceFloor  float64
	MatchThreshold   float64
	NoMatchThreshold float64
	Recorder         Recorder
	Logger           *slog.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(validator *document.Validator, detector detect.Detector, extractor *feature.Extractor, m model.Model, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		validator:        validator,
		detector:         detector,
		extractor:        extractor,
		model:            m,
		confidenceFloor:  opts.ConfidenceFloor,
		matchThreshold:   opts.MatchThreshold,
		noMatchThreshold: opts.NoMatchThreshold,
		recorder:         opts.Recorder,
		log:              logger.With("component", "pipeline"),
	}
}

// Analyze runs the full single-document path. An empty slice means the
// document validated cleanly but contained no detectable signature;
// the caller decides whether that is a failure for its use case.
func (p *Pipeline) Analyze(ctx context.Context, doc document.Document) ([]RegionResult, error) {
	validated, err := p.validator.Validate(doc)
	if err != nil {
		return nil, err
	}

	regions, err := p.detector.Detect(validated.Img)
	if err != nil {
		return nil, fmt.Errorf("detect regions in %s: %w", doc.SourceID, err)
	}

	results := make([]RegionResult, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		region.SourceID = doc.SourceID

		vec, err := p.extractor.Extract(region)
		if err != nil {
			return nil, fmt.Errorf("extract features from %s: %w", doc.SourceID, err)
		}

		res, err := p.classify(ctx, doc.SourceID, region, vec)
		if err != nil {
			return nil, err
		}
		results = append(results, RegionResult{Region: region, Result: res})
	}

	return results, nil
}

// classify scores one vector and applies the low-confidence floor.
func (p *Pipeline) classify(ctx context.Context, sourceID string, region detect.Region, vec feature.Vector) (AnalysisResult, error) {
	pred, err := p.model.Classify(ctx, vec)
	if err != nil {
		return AnalysisResult{}, err
	}

	res := AnalysisResult{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		Bounds:        region.Bounds,
		Label:         pred.Label,
		Quality:       pred.Quality,
		Confidence:    pred.Confidence,
		LowConfidence: pred.Confidence < p.confidenceFloor,
		ModelVersion:  p.model.Version(),
		Timestamp:     time.Now().UTC(),
	}
	if res.LowConfidence {
		p.log.Info("low-confidence classification",
			"source", sourceID, "label", string(res.Label), "confidence", res.Confidence)
	}
	if p.recorder != nil {
		p.recorder.RecordAnalysis(res)
	}
	return res, nil
}

// CompareVectors scores a pre-extracted vector pair. Arguments are
// canonicalized before scoring so the result is bit-for-bit symmetric
// even for model implementations that are not.
func (p *Pipeline) CompareVectors(ctx context.Context, sourceA, sourceB string, a, b feature.Vector) (ComparisonResult, error) {
	ca, cb := canonical(a, b)
	sim, err := p.model.Similarity(ctx, ca, cb)
	if err != nil {
		return ComparisonResult{}, err
	}

	res := ComparisonResult{
		ID:               uuid.NewString(),
		SourceA:          sourceA,
		SourceB:          sourceB,
		Similarity:       sim,
		Verdict:          p.verdict(sim),
		MatchThreshold:   p.matchThreshold,
		NoMatchThreshold: p.noMatchThreshold,
		ModelVersion:     p.model.Version(),
		Timestamp:        time.Now().UTC(),
	}
	if p.recorder != nil {
		p.recorder.RecordComparison(res)
	}
	return res, nil
}

// CompareDocuments runs both documents through detection and compares
// the strongest signature of each. A document without a signature
// fails with ErrNoSignature.
func (p *Pipeline) CompareDocuments(ctx context.Context, docA, docB document.Document) (ComparisonResult, error) {
	vecA, err := p.PrimaryVector(ctx, docA)
	if err != nil {
		return ComparisonResult{}, err
	}
	vecB, err := p.PrimaryVector(ctx, docB)
	if err != nil {
		return ComparisonResult{}, err
	}
	return p.CompareVectors(ctx, docA.SourceID, docB.SourceID, vecA, vecB)
}

// CompareToBaseline compares a document's primary signature against a
// pre-extracted baseline vector. Batch compare jobs extract the
// baseline once and reuse it across items.
func (p *Pipeline) CompareToBaseline(ctx context.Context, doc document.Document, baselineID string, baseline feature.Vector) (ComparisonResult, error) {
	vec, err := p.PrimaryVector(ctx, doc)
	if err != nil {
		return ComparisonResult{}, err
	}
	return p.CompareVectors(ctx, doc.SourceID, baselineID, vec, baseline)
}

// PrimaryVector extracts the feature vector of a document's highest
// confidence region. Ties resolve to the earliest region in reading
// order, which Detect already guarantees.
func (p *Pipeline) PrimaryVector(ctx context.Context, doc document.Document) (feature.Vector, error) {
	if err := ctx.Err(); err != nil {
		return feature.Vector{}, err
	}

	validated, err := p.validator.Validate(doc)
	if err != nil {
		return feature.Vector{}, err
	}
	regions, err := p.detector.Detect(validated.Img)
	if err != nil {
		return feature.Vector{}, fmt.Errorf("detect regions in %s: %w", doc.SourceID, err)
	}
	if len(regions) == 0 {
		return feature.Vector{}, fmt.Errorf("document %s: %w", doc.SourceID, ErrNoSignature)
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	best.SourceID = doc.SourceID
	return p.extractor.Extract(best)
}

func (p *Pipeline) verdict(similarity float64) Verdict {
	switch {
	case similarity >= p.matchThreshold:
		return VerdictMatch
	case similarity <= p.noMatchThreshold:
		return VerdictNoMatch
	default:
		return VerdictInconclusive
	}
}

// canonical orders a vector pair deterministically: lexicographically
// smaller values first, version string as final tie-break.
func canonical(a, b feature.Vector) (feature.Vector, feature.Vector) {
	for i := 0; i < len(a.Values) && i < len(b.Values); i++ {
		if a.Values[i] < b.Values[i] {
			return a, b
		}
		if a.Values[i] > b.Values[i] {
			return b, a
		}
	}
	if len(a.Values) > len(b.Values) || a.Version > b.Version {
		return b, a
	}
	return a, b
}
