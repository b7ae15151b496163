package shortlist

import (
	"context"

	healthuc "github.com/kailas-cloud/shortlist/internal/usecase/health"
)

// HealthStatus is the aggregated state of the pool store.
type HealthStatus struct {
	Status string            // "ok", "degraded" or "error"
	Checks map[string]string // component name to "ok" or "error"
}

// Healthy reports whether every component check passed.
func (h HealthStatus) Healthy() bool { return h.Status == string(healthuc.Healthy) }

// Health runs the store check. Providers belong to the caller and are not checked.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	out := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		out.Checks[name] = string(res)
	}
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
