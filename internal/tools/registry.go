package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deskmind/orchestrator/internal/metrics"
	"github.com/deskmind/orchestrator/internal/tracing"
)

// Registry holds the configured providers and applies the shared invocation
// policy: per-call timeout, per-kind rate limiting, panic containment and
// metrics. Invoke never returns an error and never raises; failures come
// back as Result{Success: false}.
type Registry struct {
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRegistry builds a registry over the given providers.
func NewRegistry(providers []Provider, timeout time.Duration, perSecond float64, logger *zap.Logger) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if perSecond <= 0 {
		perSecond = 5
	}
	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		timeout:   timeout,
		logger:    logger,
	}
	for _, p := range providers {
		r.providers[p.Kind()] = p
		r.limiters[p.Kind()] = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
	}
	return r
}

// Kinds returns the registered result kinds.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Invoke runs the provider registered for kind with a bounded timeout.
func (r *Registry) Invoke(ctx context.Context, kind string, args map[string]string) Result {
	provider, ok := r.providers[kind]
	if !ok {
		return Fail(fmt.Sprintf("unknown tool kind: %s", kind))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := tracing.StartToolSpan(ctx, kind)
	defer span.End()

	if err := r.limiters[kind].Wait(ctx); err != nil {
		metrics.ToolInvocations.WithLabelValues(kind, "rate_limited").Inc()
		return Fail(fmt.Sprintf("tool %s rate limited: %v", kind, err))
	}

	start := time.Now()
	result := r.invokeProtected(ctx, provider, args)
	elapsed := time.Since(start)

	status := "success"
	if !result.Success {
		status = "failure"
	}
	metrics.ToolInvocations.WithLabelValues(kind, status).Inc()
	metrics.ToolDuration.WithLabelValues(kind).Observe(float64(elapsed.Milliseconds()))

	r.logger.Debug("Tool invoked",
		zap.String("kind", kind),
		zap.Bool("success", result.Success),
		zap.Duration("duration", elapsed),
	)
	return result
}

func (r *Registry) invokeProtected(ctx context.Context, provider Provider, args map[string]string) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool provider panicked",
				zap.String("kind", provider.Kind()),
				zap.Any("panic", rec),
			)
			result = Fail(fmt.Sprintf("tool %s panicked: %v", provider.Kind(), rec))
		}
	}()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- Fail(fmt.Sprintf("tool %s panicked: %v", provider.Kind(), rec))
			}
		}()
		done <- provider.Invoke(ctx, args)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// Timeout counts as a provider failure, never a workflow-fatal error.
		return Fail(fmt.Sprintf("tool %s timed out: %v", provider.Kind(), ctx.Err()))
	}
}
