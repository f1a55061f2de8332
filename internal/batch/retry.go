package batch

import (
	"context"
	"errors"
	"time"

	"github.com/signumlab/sigengine/internal/analyze"
	"github.com/signumlab/sigengine/internal/document"
	"github.com/signumlab/sigengine/internal/feature"
	"github.com/signumlab/sigengine/internal/model"
)

// errCancelled terminates pending items of a cancelled job.
var errCancelled = errors.New("job cancelled")

// classify maps an item failure onto the error taxonomy. Input and
// model/shape errors are permanent; timeouts and unavailable model
// backends are transient and eligible for retry. Unrecognized errors
// are treated as permanent so a genuinely broken item cannot burn its
// whole retry budget on an undiagnosed fault.
func classify(err error) (kind string, transient bool) {
	if ve, ok := document.IsValidationError(err); ok {
		return string(ve.Kind), false
	}
	var shape *feature.ShapeError
	if errors.As(err, &shape) {
		return "feature_shape_mismatch", false
	}
	var version *feature.VersionError
	if errors.As(err, &version) {
		return "incompatible_model_version", false
	}
	if errors.Is(err, analyze.ErrNoSignature) {
		return "no_signature", false
	}
	if errors.Is(err, errCancelled) {
		return "cancelled", false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	if errors.Is(err, model.ErrUnavailable) {
		return "resource_unavailable", true
	}
	return "internal", false
}

// backoff returns the delay before retry attempt n (1-based):
// base * 2^(n-1), capped.
func backoff(base, cap time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
