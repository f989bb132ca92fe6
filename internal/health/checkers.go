package health

import (
	"context"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
)

// RedisChecker probes the session store's Redis connection. Session storage
// is critical: without it turns lose history and checkpoints.
type RedisChecker struct {
	client *circuitbreaker.RedisWrapper
}

func NewRedisChecker(client *circuitbreaker.RedisWrapper) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string   { return "redis" }
func (c *RedisChecker) Critical() bool { return true }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	if c.client.IsOpen() {
		return CheckResult{Status: StatusUnhealthy, Message: "circuit breaker open"}
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// Pinger is anything with a Ping method; the archive satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ArchiveChecker probes the conversation archive. Archive loss degrades the
// service but does not block turns, so it is non-critical.
type ArchiveChecker struct {
	archive Pinger
}

func NewArchiveChecker(archive Pinger) *ArchiveChecker {
	return &ArchiveChecker{archive: archive}
}

func (c *ArchiveChecker) Name() string   { return "archive" }
func (c *ArchiveChecker) Critical() bool { return false }

func (c *ArchiveChecker) Check(ctx context.Context) CheckResult {
	if err := c.archive.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
