package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"

	defaultReadyCheckTimeout = 2 * time.Second
)

// BuildInfo describes the running binary for health reporting.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// ReadyCheck probes one downstream dependency. A nil error means ready.
type ReadyCheck func(ctx context.Context) error

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	build   BuildInfo
	clock   func() time.Time
	timeout time.Duration
	checks  map[string]ReadyCheck
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo attaches build metadata to health responses.
func WithHealthBuildInfo(build BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthCheck registers a named readiness probe.
func WithHealthCheck(name string, check ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		name = strings.TrimSpace(name)
		if name == "" || check == nil {
			return
		}
		if h.checks == nil {
			h.checks = make(map[string]ReadyCheck)
		}
		h.checks[name] = check
	}
}

// WithHealthCheckTimeout bounds the time spent on each readiness probe.
func WithHealthCheckTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandlers) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHealthHandlers constructs health handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:   time.Now,
		timeout: defaultReadyCheckTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness together with build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()

	payload := map[string]any{
		"status":    healthStatusOK,
		"timestamp": now.Format(time.RFC3339),
	}
	if v := strings.TrimSpace(h.build.Version); v != "" {
		payload["version"] = v
	}
	if v := strings.TrimSpace(h.build.CommitSHA); v != "" {
		payload["commitSha"] = v
	}
	if v := strings.TrimSpace(h.build.Environment); v != "" {
		payload["environment"] = v
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs every registered dependency probe and reports 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock().UTC()

	type checkResult struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latencyMs"`
		Error     string `json:"error,omitempty"`
	}

	status := healthStatusOK
	results := make(map[string]checkResult, len(h.checks))
	details := make([]string, 0)

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := h.checks[name]
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		started := time.Now()
		err := check(checkCtx)
		cancel()

		result := checkResult{
			Status:    healthStatusOK,
			LatencyMS: time.Since(started).Milliseconds(),
		}
		if err != nil {
			status = healthStatusDegraded
			result.Status = healthStatusDegraded
			result.Error = err.Error()
			details = append(details, name+": "+err.Error())
		}
		results[name] = result
	}

	payload := map[string]any{
		"status":    status,
		"timestamp": now.Format(time.RFC3339),
		"checks":    results,
		"details":   details,
	}

	code := http.StatusOK
	if status != healthStatusOK {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, payload)
}
