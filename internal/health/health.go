// Package health answers the capability query "is the scoring model
// loaded and responsive", plus a host snapshot. The external API layer
// maps this onto its health endpoint.
package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/signumlab/sigengine/internal/model"
)

// Report is one point-in-time capability answer.
type Report struct {
	Service      string    `json:"service"`
	ModelVersion string    `json:"model_version"`
	ModelReady   bool      `json:"model_ready"`
	ModelError   string    `json:"model_error,omitempty"`
	CPUCount     int       `json:"cpu_count"`
	CPUPercent   float64   `json:"cpu_percent"`
	MemUsedPct   float64   `json:"mem_used_percent"`
	Timestamp    time.Time `json:"timestamp"`
}

// Healthy reports whether the engine can accept work.
func (r Report) Healthy() bool { return r.ModelReady }

// Check probes the scoring model and samples host CPU/memory. Host
// telemetry failures degrade to zero values rather than failing the
// probe; only the model answer gates readiness.
func Check(ctx context.Context, m model.Model) Report {
	r := Report{
		Service:      "sigengine",
		ModelVersion: m.Version(),
		ModelReady:   true,
		Timestamp:    time.Now().UTC(),
	}

	if err := m.Ready(ctx); err != nil {
		r.ModelReady = false
		r.ModelError = err.Error()
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		r.CPUCount = n
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		r.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.MemUsedPct = vm.UsedPercent
	}

	return r
}
