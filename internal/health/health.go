// Package health aggregates dependency health checks behind liveness and
// readiness probes.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus is the outcome of one health check.
type CheckStatus string

const (
	StatusHealthy   CheckStatus = "healthy"
	StatusDegraded  CheckStatus = "degraded"
	StatusUnhealthy CheckStatus = "unhealthy"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) CheckResult
}

// CheckResult is one component's probe outcome.
type CheckResult struct {
	Component string        `json:"component"`
	Status    CheckStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report is the aggregate view served to probes.
type Report struct {
	Status     CheckStatus            `json:"status"`
	Message    string                 `json:"message"`
	Ready      bool                   `json:"ready"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Manager runs registered checks on demand and caches the last results.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.RWMutex
	checkers []Checker
	last     map[string]CheckResult
}

// NewManager builds a manager with a per-check timeout.
func NewManager(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
		last:    make(map[string]CheckResult),
	}
}

// Register adds a checker. Registration after serving begins is not
// supported.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.logger.Info("Health checker registered",
		zap.String("checker", c.Name()),
		zap.Bool("critical", c.Critical()),
	)
}

// Report runs all checks and aggregates them. A failing critical check makes
// the service not ready; non-critical failures only degrade it.
func (m *Manager) Report(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	components := make(map[string]CheckResult, len(checkers))
	criticalFailures := 0
	failures := 0

	for _, c := range checkers {
		result := m.run(ctx, c)
		components[c.Name()] = result
		if result.Status == StatusUnhealthy {
			failures++
			if result.Critical {
				criticalFailures++
			}
		}
	}

	m.mu.Lock()
	for name, r := range components {
		m.last[name] = r
	}
	m.mu.Unlock()

	report := Report{
		Components: components,
		Timestamp:  time.Now(),
	}
	switch {
	case criticalFailures > 0:
		report.Status = StatusUnhealthy
		report.Message = fmt.Sprintf("%d critical component(s) failing", criticalFailures)
		report.Ready = false
	case failures > 0:
		report.Status = StatusDegraded
		report.Message = fmt.Sprintf("%d non-critical component(s) failing", failures)
		report.Ready = true
	default:
		report.Status = StatusHealthy
		report.Message = fmt.Sprintf("All %d components healthy", len(components))
		report.Ready = true
	}
	return report
}

func (m *Manager) run(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	result := c.Check(checkCtx)
	result.Component = c.Name()
	result.Critical = c.Critical()
	result.Duration = time.Since(start)
	result.Timestamp = start
	return result
}
