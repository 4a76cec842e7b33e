package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

type probeBody struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	CommitSHA   string   `json:"commitSha"`
	Environment string   `json:"environment"`
	Uptime      string   `json:"uptime"`
	Timestamp   string   `json:"timestamp"`
	Details     []string `json:"details"`
	Checks      map[string]struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latencyMs"`
		CheckedAt string `json:"checkedAt"`
	} `json:"checks"`
}

func serveProbe(t *testing.T, handler http.HandlerFunc) (int, probeBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	var body probeBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return rr.Code, body
}

func TestHealthzReportsBuild(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "1.0.0", CommitSHA: "abc123", Environment: "prod", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(90 * time.Second) }),
		// A failing system service must not affect liveness.
		WithHealthSystemService(&stubSystemService{err: errors.New("down")}),
	)

	code, body := serveProbe(t, h.Healthz)
	if code != http.StatusOK || body.Status != domain.HealthStatusOK {
		t.Fatalf("expected 200 ok, got %d %s", code, body.Status)
	}
	if body.Version != "1.0.0" || body.CommitSHA != "abc123" || body.Environment != "prod" {
		t.Fatalf("unexpected build metadata %+v", body)
	}
	if body.Uptime != "1m30s" || body.Timestamp != "2024-01-01T00:01:30Z" {
		t.Fatalf("unexpected uptime/timestamp %s %s", body.Uptime, body.Timestamp)
	}
}

func TestReadyzStatusMapping(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)

	cases := []struct {
		name    string
		report  services.SystemHealthReport
		code    int
		details []string
	}{
		{
			name: "all ok",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"delivery_api": {Status: domain.HealthStatusOK, Latency: 10 * time.Millisecond, CheckedAt: at},
				},
			},
			code: http.StatusOK,
		},
		{
			name: "optional dependency degraded",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"delivery_api":  {Status: domain.HealthStatusDegraded, Error: "connection refused", Detail: "ignored"},
					"secretManager": {Status: domain.HealthStatusOK},
				},
			},
			code:    http.StatusOK,
			details: []string{"delivery_api: connection refused"},
		},
		{
			name: "required dependency failed",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"secretManager": {Status: domain.HealthStatusError, Detail: "permission denied"},
					"delivery_api":  {Status: domain.HealthStatusDegraded},
				},
			},
			code:    http.StatusServiceUnavailable,
			details: []string{"delivery_api: degraded", "secretManager: permission denied"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.report.GeneratedAt = at
			h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: tc.report}))

			code, body := serveProbe(t, h.Readyz)
			if code != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, code)
			}
			if body.Status != tc.report.Status {
				t.Fatalf("expected status %s, got %s", tc.report.Status, body.Status)
			}
			if body.Timestamp != "2024-01-01T00:05:00Z" {
				t.Fatalf("expected report timestamp, got %s", body.Timestamp)
			}
			if len(body.Details) != len(tc.details) {
				t.Fatalf("expected details %v, got %v", tc.details, body.Details)
			}
			for i := range tc.details {
				if body.Details[i] != tc.details[i] {
					t.Fatalf("expected details %v, got %v", tc.details, body.Details)
				}
			}
			if len(body.Checks) != len(tc.report.Checks) {
				t.Fatalf("expected %d checks, got %v", len(tc.report.Checks), body.Checks)
			}
		})
	}
}

func TestReadyzCheckPayload(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"delivery_api": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: at},
		},
	}}))

	_, body := serveProbe(t, h.Readyz)
	check := body.Checks["delivery_api"]
	if check.LatencyMS != 12 || check.CheckedAt != "2024-01-01T00:05:00Z" {
		t.Fatalf("unexpected check payload %+v", check)
	}
}

func TestReadyzReportFailure(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "health_unavailable" {
		t.Fatalf("expected health_unavailable, got %v", body["error"])
	}
}

func TestReadyzWithoutSystemService(t *testing.T) {
	code, body := serveProbe(t, NewHealthHandlers().Readyz)
	if code != http.StatusOK || body.Status != domain.HealthStatusOK {
		t.Fatalf("expected liveness answer, got %d %+v", code, body)
	}
}
