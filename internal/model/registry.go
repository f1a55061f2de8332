package model

import (
	"fmt"
	"strings"
)

// New creates a scoring model for the configured variant. Remote
// variants are addressed as "remote:<base-url>".
func New(variant, version string) (Model, error) {
	switch {
	case variant == "heuristic" || variant == "":
		return NewHeuristic(version), nil
	case strings.HasPrefix(variant, "remote:"):
		url := strings.TrimPrefix(variant, "remote:")
		if url == "" {
			return nil, fmt.Errorf("remote model variant needs a base URL")
		}
		return NewRemote(url, version), nil
	default:
		return nil, fmt.Errorf("unknown model variant: %s", variant)
	}
}
