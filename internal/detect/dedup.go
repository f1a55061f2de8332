package detect

import "sort"

// Dedup removes regions that overlap an already-accepted region above
// the IoU threshold. Candidates are ranked larger-area first, equal
// areas by higher confidence, then by (minY, minX), so the outcome is
// deterministic for identical input.
func Dedup(regions []Region, iouThreshold float64) []Region {
	if len(regions) < 2 {
		return regions
	}

	ranked := make([]Region, len(regions))
	copy(ranked, regions)
	sort.Slice(ranked, func(i, j int) bool {
		ai, aj := ranked[i].Area(), ranked[j].Area()
		if ai != aj {
			return ai > aj
		}
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		if ranked[i].Bounds.Min.Y != ranked[j].Bounds.Min.Y {
			return ranked[i].Bounds.Min.Y < ranked[j].Bounds.Min.Y
		}
		return ranked[i].Bounds.Min.X < ranked[j].Bounds.Min.X
	})

	accepted := []Region{}
	for _, cand := range ranked {
		keep := true
		for _, acc := range accepted {
			if IoU(cand, acc) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			accepted = append(accepted, cand)
		}
	}

	// Report accepted regions in reading order regardless of rank.
	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].Bounds.Min.Y != accepted[j].Bounds.Min.Y {
			return accepted[i].Bounds.Min.Y < accepted[j].Bounds.Min.Y
		}
		return accepted[i].Bounds.Min.X < accepted[j].Bounds.Min.X
	})
	return accepted
}

// IoU computes intersection-over-union of two region bounding boxes.
func IoU(a, b Region) float64 {
	inter := a.Bounds.Intersect(b.Bounds)
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := a.Area() + b.Area() - interArea
	if union == 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}
