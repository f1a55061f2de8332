package model

import (
	"context"
	"math"
	"sort"

	"github.com/signumlab/sigengine/internal/feature"
)

// Heuristic is a rule-based scoring model over fv1 features. It exists
// as the default pilot model and as the reference implementation of the
// Model contract; learned models plug in behind the same interface.
type Heuristic struct {
	version string
}

// NewHeuristic returns a heuristic model bound to a feature version.
func NewHeuristic(version string) *Heuristic {
	if version == "" {
		version = feature.Version
	}
	return &Heuristic{version: version}
}

func (h *Heuristic) Version() string { return h.version }

// Ready always succeeds: the heuristic has no backend to load.
func (h *Heuristic) Ready(ctx context.Context) error { return ctx.Err() }

// Classify scores the vector against per-style evidence rules. The
// winning label's lead over the runner-up becomes the confidence.
func (h *Heuristic) Classify(ctx context.Context, vec feature.Vector) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if err := vec.CheckShape(h.version); err != nil {
		return Prediction{}, err
	}

	v := vec.Values
	ink := v[feature.IdxInkCoverage]
	strokes := v[feature.IdxStrokeDensity]
	extent := v[feature.IdxExtent]
	aspect := v[feature.IdxAspect]

	scores := map[StyleLabel]float64{
		// Dense, boxy ink reads as a stamp impression.
		StyleStamp: clamp01(2.2*ink - 1.5*strokes - 0.5*aspect),
		// Many stroke transitions with a spread ink box reads as pen.
		StyleHandwritten: clamp01(3.5*strokes + 0.8*extent - 0.6*ink),
		// Regular row structure with thin coverage reads as a typed name.
		StyleDigital: clamp01(0.9*gridRowRegularity(v) - 1.8*strokes - 1.2*ink),
		// Electronic capture: handwriting geometry, but very clean
		// uniform strokes (low coverage, high regularity).
		StyleElectronic: clamp01(1.5*strokes + 0.8*gridRowRegularity(v) - 2.0*ink),
	}

	best, second := rank(scores)
	pred := Prediction{
		Label:      best.label,
		Quality:    quality(v),
		Confidence: clamp01(0.5 + (best.score-second.score)),
	}
	if best.score < 0.1 {
		pred.Label = StyleUnknown
		pred.Confidence = clamp01(0.1 + best.score)
	}
	return pred, nil
}

// Similarity is cosine similarity over the non-negative fv1 space,
// which lands in [0,1]. Identical vectors short-circuit to exactly 1.0.
func (h *Heuristic) Similarity(ctx context.Context, a, b feature.Vector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := a.CheckShape(h.version); err != nil {
		return 0, err
	}
	if err := b.CheckShape(h.version); err != nil {
		return 0, err
	}

	if equalValues(a.Values, b.Values) {
		return 1.0, nil
	}

	var dot, na, nb float64
	for i := range a.Values {
		dot += a.Values[i] * b.Values[i]
		na += a.Values[i] * a.Values[i]
		nb += b.Values[i] * b.Values[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// quality rates legibility: enough ink to read, spread across the box,
// with visible stroke structure.
func quality(v []float64) float64 {
	ink := v[feature.IdxInkCoverage]
	extent := v[feature.IdxExtent]
	strokes := v[feature.IdxStrokeDensity]

	inkScore := 1.0 - math.Min(math.Abs(ink-0.15)/0.4, 1.0)
	strokeScore := math.Min(strokes/0.15, 1.0)
	return clamp01(0.4*inkScore + 0.35*extent + 0.25*strokeScore)
}

// gridRowRegularity measures how evenly ink distributes along each
// grid row. Typed text fills rows uniformly; handwriting does not.
func gridRowRegularity(v []float64) float64 {
	grid := v[feature.IdxGridStart:]
	var total float64
	rows := 0
	for r := 0; r < 4; r++ {
		row := grid[r*4 : (r+1)*4]
		mean := (row[0] + row[1] + row[2] + row[3]) / 4
		if mean == 0 {
			continue
		}
		var dev float64
		for _, c := range row {
			dev += math.Abs(c - mean)
		}
		total += 1.0 - math.Min(dev/(4*mean), 1.0)
		rows++
	}
	if rows == 0 {
		return 0
	}
	return total / float64(rows)
}

type labelScore struct {
	label StyleLabel
	score float64
}

// rank returns the best and second-best scores with a deterministic
// label order for ties.
func rank(scores map[StyleLabel]float64) (labelScore, labelScore) {
	ranked := make([]labelScore, 0, len(scores))
	for label, score := range scores {
		ranked = append(ranked, labelScore{label, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].label < ranked[j].label
	})
	return ranked[0], ranked[1]
}

func equalValues(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
