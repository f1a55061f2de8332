package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signumlab/sigengine/internal/feature"
)

// Remote delegates scoring to an external inference service. Network
// failures and 5xx answers wrap ErrUnavailable so the orchestrator can
// retry them; shape and version checks still happen locally before any
// bytes go on the wire.
type Remote struct {
	baseURL string
	version string
	client  *http.Client
}

// NewRemote creates a remote model client for the given inference URL.
func NewRemote(baseURL, version string) *Remote {
	if version == "" {
		version = feature.Version
	}
	return &Remote{
		baseURL: baseURL,
		version: version,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Remote) Version() string { return r.version }

type classifyRequest struct {
	Version string    `json:"version"`
	Values  []float64 `json:"values"`
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Quality    float64 `json:"quality"`
	Confidence float64 `json:"confidence"`
}

type similarityRequest struct {
	Version string    `json:"version"`
	A       []float64 `json:"a"`
	B       []float64 `json:"b"`
}

type similarityResponse struct {
	Similarity float64 `json:"similarity"`
}

func (r *Remote) Classify(ctx context.Context, vec feature.Vector) (Prediction, error) {
	if err := vec.CheckShape(r.version); err != nil {
		return Prediction{}, err
	}

	var resp classifyResponse
	err := r.post(ctx, "/classify", classifyRequest{Version: vec.Version, Values: vec.Values}, &resp)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Label:      StyleLabel(resp.Label),
		Quality:    clamp01(resp.Quality),
		Confidence: clamp01(resp.Confidence),
	}, nil
}

func (r *Remote) Similarity(ctx context.Context, a, b feature.Vector) (float64, error) {
	if err := a.CheckShape(r.version); err != nil {
		return 0, err
	}
	if err := b.CheckShape(r.version); err != nil {
		return 0, err
	}
	if equalValues(a.Values, b.Values) {
		return 1.0, nil
	}

	var resp similarityResponse
	err := r.post(ctx, "/similarity", similarityRequest{Version: a.Version, A: a.Values, B: b.Values}, &resp)
	if err != nil {
		return 0, err
	}
	return clamp01(resp.Similarity), nil
}

// Ready probes the service health endpoint.
func (r *Remote) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (r *Remote) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: inference status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
