// Package deps runs pre-flight dependency checks: external executables on
// PATH, HTTP service health endpoints, and writable working directories.
// Checks run in parallel and always produce a full report; a failed
// required check blocks startup, a failed optional check is a warning.
//
// The manager can also run in background mode, rechecking on an interval
// so supervisors can consult current health before a restart attempt
// instead of thrashing on a known-missing dependency.
package deps

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// Manager owns the configured checks and the latest report.
type Manager struct {
	checks []domain.Check
	cfg    config.DepsConfig
	client *http.Client
	logger zerolog.Logger

	mu   sync.RWMutex
	last *domain.CheckReport
}

// NewManager creates a Manager for the given checks.
func NewManager(checks []domain.Check, cfg config.DepsConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		checks: checks,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HealthTimeout},
		logger: logger,
	}
}

// RunChecks executes every check in parallel and returns the full report.
// Individual failures land in the report, never as a partial result.
func (m *Manager) RunChecks(ctx context.Context) (*domain.CheckReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &domain.CheckReport{
		Results: make([]domain.CheckResult, len(m.checks)),
		RanAt:   time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range m.checks {
		g.Go(func() error {
			report.Results[i] = m.runOne(gctx, check)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, result := range report.Results {
		if result.Passed {
			continue
		}
		event := m.logger.Warn()
		if result.Check.Required {
			event = m.logger.Error()
		}
		event.Str("check", result.Check.Name).Str("detail", result.Detail).Msg("dependency check failed")
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	return report, nil
}

// Verify runs all checks and returns ErrDependencyUnavailable if any
// required check failed.
func (m *Manager) Verify(ctx context.Context) (*domain.CheckReport, error) {
	report, err := m.RunChecks(ctx)
	if err != nil {
		return nil, err
	}
	if failed := report.FailedRequired(); len(failed) > 0 {
		return report, fmt.Errorf("required dependency check '%s' failed: %w", failed[0], foremanerrors.ErrDependencyUnavailable)
	}
	return report, nil
}

// Gate reports current health from the most recent check run, for
// supervisors deciding whether a restart attempt is worth making. With no
// report yet it passes; boot-time gating goes through Verify.
func (m *Manager) Gate() error {
	m.mu.RLock()
	report := m.last
	m.mu.RUnlock()

	if report == nil {
		return nil
	}
	if failed := report.FailedRequired(); len(failed) > 0 {
		return fmt.Errorf("required dependency '%s' unavailable: %w", failed[0], foremanerrors.ErrDependencyUnavailable)
	}
	return nil
}

// LastReport returns the most recent report, or nil before the first run.
func (m *Manager) LastReport() *domain.CheckReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Monitor rechecks dependencies on the configured interval until ctx is
// cancelled. Failures only update the shared report; blocked components
// consult it on their own schedule instead of busy-looping.
func (m *Manager) Monitor(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.RecheckInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.RecheckInterval).Msg("dependency monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("dependency monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.RunChecks(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("dependency recheck failed")
			}
		}
	}
}

// runOne executes a single check and times it.
func (m *Manager) runOne(ctx context.Context, check domain.Check) domain.CheckResult {
	start := time.Now()
	passed, detail := m.probe(ctx, check)
	return domain.CheckResult{
		Check:    check,
		Passed:   passed,
		Detail:   detail,
		Duration: time.Since(start),
	}
}

// probe dispatches on the check kind.
func (m *Manager) probe(ctx context.Context, check domain.Check) (bool, string) {
	switch check.Kind {
	case domain.CheckKindExecutable:
		return probeExecutable(check.Target)
	case domain.CheckKindService:
		return m.probeService(ctx, check.Target)
	case domain.CheckKindWritableDir:
		return probeWritableDir(check.Target)
	default:
		return false, fmt.Sprintf("unknown check kind %q", check.Kind)
	}
}

// probeExecutable verifies the target is resolvable on PATH.
func probeExecutable(target string) (bool, string) {
	path, err := exec.LookPath(target)
	if err != nil {
		return false, fmt.Sprintf("executable %q not found on PATH", target)
	}
	return true, path
}

// probeService issues a GET against the target health URL. Any status
// below 400 counts as reachable.
func (m *Manager) probeService(ctx context.Context, target string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Sprintf("invalid health URL %q: %v", target, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("service unreachable: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Sprintf("service returned %s", resp.Status)
	}
	return true, resp.Status
}

// probeWritableDir verifies the directory exists (creating it if needed)
// and accepts a test write.
func probeWritableDir(target string) (bool, string) {
	if err := os.MkdirAll(target, 0o750); err != nil {
		return false, fmt.Sprintf("cannot create directory: %v", err)
	}
	probe := filepath.Join(target, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false, fmt.Sprintf("directory not writable: %v", err)
	}
	_ = os.Remove(probe)
	return true, target
}
