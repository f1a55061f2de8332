package model

import (
	"context"
	"testing"

	"github.com/signumlab/sigengine/internal/feature"
)

// vec builds an fv1 vector with the named global features; grid cells
// default to a light uniform fill.
func vec(aspect, ink, strokes, extent float64) feature.Vector {
	values := make([]float64, feature.Dim)
	values[feature.IdxAspect] = aspect
	values[feature.IdxInkCoverage] = ink
	values[feature.IdxStrokeDensity] = strokes
	values[feature.IdxCentroidX] = 0.5
	values[feature.IdxCentroidY] = 0.5
	values[feature.IdxExtent] = extent
	for i := feature.IdxGridStart; i < feature.Dim; i++ {
		values[i] = ink
	}
	return feature.Vector{Version: feature.Version, Values: values}
}

func TestClassifyScoresInRange(t *testing.T) {
	h := NewHeuristic("")
	ctx := context.Background()

	samples := []feature.Vector{
		vec(0.25, 0.15, 0.2, 0.7),  // stroke-heavy
		vec(0.1, 0.6, 0.02, 0.9),   // dense block
		vec(0.3, 0.05, 0.01, 0.2),  // sparse
		vec(0.5, 0.12, 0.08, 0.55), // middling
	}

	for i, v := range samples {
		pred, err := h.Classify(ctx, v)
		if err != nil {
			t.Fatalf("sample %d: Classify failed: %v", i, err)
		}
		if pred.Quality < 0 || pred.Quality > 1 {
			t.Errorf("sample %d: quality %f outside [0,1]", i, pred.Quality)
		}
		if pred.Confidence < 0 || pred.Confidence > 1 {
			t.Errorf("sample %d: confidence %f outside [0,1]", i, pred.Confidence)
		}
		if pred.Label == "" {
			t.Errorf("sample %d: empty label", i)
		}
	}
}

func TestClassifyLabels(t *testing.T) {
	h := NewHeuristic("")
	ctx := context.Background()

	pred, err := h.Classify(ctx, vec(0.25, 0.18, 0.25, 0.75))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if pred.Label != StyleHandwritten {
		t.Errorf("stroke-heavy sample classified as %s, want %s", pred.Label, StyleHandwritten)
	}

	pred, err = h.Classify(ctx, vec(0.1, 0.62, 0.02, 0.9))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if pred.Label != StyleStamp {
		t.Errorf("dense block classified as %s, want %s", pred.Label, StyleStamp)
	}
}

func TestClassifyShapeErrors(t *testing.T) {
	h := NewHeuristic("")
	ctx := context.Background()

	short := feature.Vector{Version: feature.Version, Values: []float64{0.1, 0.2}}
	if _, err := h.Classify(ctx, short); err == nil {
		t.Error("wrong-dimension vector accepted")
	}

	skewed := vec(0.2, 0.1, 0.1, 0.5)
	skewed.Version = "fv99"
	if _, err := h.Classify(ctx, skewed); err == nil {
		t.Error("version-skewed vector accepted")
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	h := NewHeuristic("")
	ctx := context.Background()

	a := vec(0.25, 0.15, 0.2, 0.7)
	b := vec(0.4, 0.3, 0.05, 0.5)

	ab, err := h.Similarity(ctx, a, b)
	if err != nil {
		t.Fatalf("Similarity failed: %v", err)
	}
	ba, err := h.Similarity(ctx, b, a)
	if err != nil {
		t.Fatalf("Similarity failed: %v", err)
	}

	if ab != ba {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
	if ab < 0 || ab > 1 {
		t.Errorf("similarity %f outside [0,1]", ab)
	}
}

func TestSimilaritySelf(t *testing.T) {
	h := NewHeuristic("")

	a := vec(0.3, 0.12, 0.15, 0.6)
	sim, err := h.Similarity(context.Background(), a, a)
	if err != nil {
		t.Fatalf("Similarity failed: %v", err)
	}
	if sim != 1.0 {
		t.Errorf("self-similarity = %v, want exactly 1.0", sim)
	}
}

func TestRegistry(t *testing.T) {
	if _, err := New("heuristic", ""); err != nil {
		t.Errorf("heuristic variant: %v", err)
	}
	if _, err := New("", ""); err != nil {
		t.Errorf("default variant: %v", err)
	}
	if _, err := New("remote:http://localhost:5000", "fv1"); err != nil {
		t.Errorf("remote variant: %v", err)
	}
	if _, err := New("remote:", ""); err == nil {
		t.Error("remote variant without URL accepted")
	}
	if _, err := New("bogus", ""); err == nil {
		t.Error("unknown variant accepted")
	}
}
