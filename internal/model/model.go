package model

import (
	"context"
	"errors"

	"github.com/signumlab/sigengine/internal/feature"
)

// StyleLabel is the signature style a scoring model assigns.
type StyleLabel string

const (
	StyleHandwritten StyleLabel = "handwritten"
	StyleDigital     StyleLabel = "digital"
	StyleElectronic  StyleLabel = "electronic"
	StyleStamp       StyleLabel = "stamp"
	StyleUnknown     StyleLabel = "unknown"
)

// Prediction is a scoring model's verdict on one feature vector.
// Quality measures legibility/completeness of the signature image;
// Confidence measures the model's certainty in Label. The two axes are
// independent.
type Prediction struct {
	Label      StyleLabel
	Quality    float64 // 0.0-1.0
	Confidence float64 // 0.0-1.0
}

// Model is the capability interface every concrete scoring model must
// satisfy: classification, pairwise similarity and a readiness probe.
// Implementations may block on external compute, so every call takes a
// context. Swapping models happens via configuration, not inheritance.
type Model interface {
	// Version is the feature version this model consumes.
	Version() string

	// Classify scores one vector. Wrong-dimension input is a
	// feature.ShapeError; version skew is a feature.VersionError.
	Classify(ctx context.Context, vec feature.Vector) (Prediction, error)

	// Similarity returns a score in [0,1] for a vector pair. It must
	// be symmetric, and 1.0 for identical vectors.
	Similarity(ctx context.Context, a, b feature.Vector) (float64, error)

	// Ready reports whether the model is loaded and responsive.
	Ready(ctx context.Context) error
}

// ErrUnavailable marks the model backend as temporarily unreachable.
// Errors wrapping it are transient and eligible for retry.
var ErrUnavailable = errors.New("scoring model unavailable")
