package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	TurnsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_turns_started_total",
			Help: "Total number of conversation turns started",
		},
	)

	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_turns_completed_total",
			Help: "Total number of conversation turns completed",
		},
		[]string{"status"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deskmind_turn_duration_seconds",
			Help:    "End-to-end turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Stage metrics
	StageExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskmind_stage_duration_ms",
			Help:    "Stage execution duration in milliseconds",
			Buckets: []float64{50, 100, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"stage"},
	)

	// Router metrics
	RouterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_router_decisions_total",
			Help: "Total number of routing decisions by edge",
		},
		[]string{"from", "to"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_escalations_total",
			Help: "Total number of turns escalated to a human",
		},
		[]string{"reason"},
	)

	// Tool metrics
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"category", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskmind_tool_duration_ms",
			Help:    "Tool invocation duration in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"category"},
	)

	// Checkpoint metrics
	CheckpointWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_checkpoint_writes_total",
			Help: "Total number of workflow checkpoint writes",
		},
	)

	CheckpointLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_checkpoint_loads_total",
			Help: "Total number of workflow checkpoint loads",
		},
		[]string{"status"},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_session_cache_hits_total",
			Help: "Total number of session local cache hits",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_session_cache_misses_total",
			Help: "Total number of session local cache misses",
		},
	)

	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskmind_session_cache_size",
			Help: "Current number of sessions in the local cache",
		},
	)

	SessionCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmind_session_cache_evictions_total",
			Help: "Total number of sessions evicted from the local cache",
		},
	)

	// LLM metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_llm_calls_total",
			Help: "Total number of chat model invocations",
		},
		[]string{"model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_llm_tokens_used_total",
			Help: "Total number of tokens consumed by chat model calls",
		},
		[]string{"model"},
	)

	// Archive metrics
	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmind_archive_writes_total",
			Help: "Total number of conversation archive writes",
		},
		[]string{"status"},
	)

	ArchiveQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskmind_archive_queue_depth",
			Help: "Current depth of the async archive write queue",
		},
	)
)
