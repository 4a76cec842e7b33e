package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/cateringhub/pricing/internal/domain"
)

const (
	defaultDependencyTimeout = 1500 * time.Millisecond
	systemMetricNamespace    = "github.com/cateringhub/pricing/health"
)

// BuildInfo is the version metadata reported by the probes.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// DependencyCheck is one readiness probe. A failing Optional check reports "degraded" rather
// than "error": pricing keeps working from local computation without it.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Check    func(context.Context) error
}

type SystemServiceDeps struct {
	Checks       []DependencyCheck
	CheckTimeout time.Duration
	Clock        func() time.Time
	Build        BuildInfo
	Meter        metric.Meter
}

type systemService struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
	build   BuildInfo
	latency metric.Float64Histogram
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	for i, check := range deps.Checks {
		switch {
		case strings.TrimSpace(check.Name) == "":
			return nil, fmt.Errorf("system service: dependency check %d missing name", i)
		case check.Check == nil:
			return nil, fmt.Errorf("system service: dependency %s missing check function", check.Name)
		}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &systemService{
		checks:  append([]DependencyCheck(nil), deps.Checks...),
		timeout: deps.CheckTimeout,
		now:     func() time.Time { return clock().UTC() },
		build:   deps.Build,
	}
	if s.timeout <= 0 {
		s.timeout = defaultDependencyTimeout
	}
	if s.build.Version == "" {
		s.build.Version = "dev"
	}
	if s.build.StartedAt.IsZero() {
		s.build.StartedAt = s.now()
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(systemMetricNamespace)
	}
	latency, err := meter.Float64Histogram("pricing.health.check_duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Readiness probe latency per dependency"))
	if err == nil {
		s.latency = latency
	}
	return s, nil
}

// HealthReport probes every dependency concurrently and folds the results into one status.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	type outcome struct {
		name  string
		check SystemHealthCheck
	}
	results := make(chan outcome, len(s.checks))
	for _, dep := range s.checks {
		go func(dep DependencyCheck) {
			results <- outcome{name: dep.Name, check: s.probe(ctx, dep)}
		}(dep)
	}

	checks := make(map[string]SystemHealthCheck, len(s.checks))
	for range s.checks {
		r := <-results
		checks[r.name] = r.check
	}

	now := s.now()
	return SystemHealthReport{
		Status:      deriveStatus(checks),
		Checks:      checks,
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		Uptime:      now.Sub(s.build.StartedAt),
		GeneratedAt: now,
	}, nil
}

func (s *systemService) probe(ctx context.Context, dep DependencyCheck) SystemHealthCheck {
	timeout := dep.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.now()
	err := dep.Check(probeCtx)
	if err == nil {
		// a probe that ignored its deadline still failed it
		err = probeCtx.Err()
	}
	end := s.now()

	result := SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err != nil {
		result.Error = err.Error()
		result.Detail = probeDetail(err)
		result.Status = domain.HealthStatusError
		if dep.Optional {
			result.Status = domain.HealthStatusDegraded
		}
	}

	if s.latency != nil {
		s.latency.Record(ctx, float64(result.Latency)/float64(time.Millisecond), metric.WithAttributes(
			attribute.String("dependency", dep.Name),
			attribute.String("status", result.Status),
		))
	}
	return result
}

func probeDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}

// deriveStatus is error if any check errored, degraded if any is not ok, else ok.
func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
