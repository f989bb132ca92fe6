package workflow

import (
	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/intent"
	"github.com/deskmind/orchestrator/internal/metrics"
)

// Router decides the next stage after each stage completes. It is total: every
// input resolves to a defined stage, and it never mutates state.
type Router struct {
	classifier *intent.Classifier
	logger     *zap.Logger
}

// NewRouter builds a router over the given intent classifier.
func NewRouter(classifier *intent.Classifier, logger *zap.Logger) *Router {
	return &Router{classifier: classifier, logger: logger}
}

// Next resolves the stage to run after `from` completed. Conditions are
// evaluated in order; the first match wins.
func (r *Router) Next(s *State, from Stage) Stage {
	next := r.decide(s, from)
	metrics.RouterDecisions.WithLabelValues(string(from), string(next)).Inc()
	r.logger.Debug("Routing decision",
		zap.String("session_id", s.SessionID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	return next
}

func (r *Router) decide(s *State, from Stage) Stage {
	switch from {
	case StageIntake:
		return r.afterIntake(s)
	case StageAnalysis:
		return r.afterAnalysis(s)
	case StageToolDispatch:
		return r.afterToolDispatch(s)
	case StageSolution:
		return r.afterSolution(s)
	case StageEscalation:
		return StageDone
	default:
		return StageDone
	}
}

func (r *Router) afterIntake(s *State) Stage {
	// Deterministic lookups (time, date, weather) gain nothing from deep
	// analysis; skip straight to tool invocation.
	if r.classifier.IsSimpleQuery(s.Utterance) {
		return StageToolDispatch
	}

	if s.Intake != nil {
		if !s.Intake.NeedsAnalysis {
			return StageDone
		}
		if s.Intake.Handoff == StageSolution {
			return StageSolution
		}
	}

	// Ambiguous or missing signals default to analysis.
	return StageAnalysis
}

func (r *Router) afterAnalysis(s *State) Stage {
	// Invoke tools whenever there is any signal of named-entity content, so
	// the synthesis stage never has to invent facts it has no data for.
	if s.Analysis != nil {
		if s.Analysis.Complexity == ComplexityMedium || s.Analysis.Complexity == ComplexityHigh {
			return StageToolDispatch
		}
		if len(s.Analysis.KeyParameters) > 0 {
			return StageToolDispatch
		}
	}
	return StageSolution
}

func (r *Router) afterToolDispatch(s *State) Stage {
	// Only critical tool classes escalate; best-effort lookups (weather,
	// knowledge base) degrade gracefully through the solution stage.
	if r.criticalToolFailed(s) {
		return StageEscalation
	}
	return StageSolution
}

func (r *Router) afterSolution(s *State) Stage {
	if s.Solution != nil && s.Solution.NeedsConfirmation &&
		s.Analysis != nil && s.Analysis.Complexity == ComplexityHigh {
		return StageEscalation
	}
	return StageDone
}

// criticalToolFailed reports whether a tool class the policy treats as
// blocking failed: an order lookup that could not be served for an
// order-centric utterance.
func (r *Router) criticalToolFailed(s *State) bool {
	result, attempted := s.ToolResultFor("order_info")
	if !attempted || result.Success {
		return false
	}
	return r.classifier.Classify(s.Utterance).Has(intent.CategoryOrder)
}
