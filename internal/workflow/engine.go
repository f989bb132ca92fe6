package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/metrics"
	"github.com/deskmind/orchestrator/internal/tracing"
)

// StageProcessor runs one stage against the current state. Implementations
// must only write their own result slot and must surface failures as errors
// rather than panicking.
type StageProcessor interface {
	Stage() Stage
	Run(ctx context.Context, s *State) error
}

// Dispatcher is the tool-dispatch pseudo-stage: it inspects accumulated state
// and merges tool results into it. Provider failures are stored as failed
// results, never returned as errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *State) error
}

// Store is the session persistence the engine depends on: ordered message
// history plus a per-session checkpoint slot.
type Store interface {
	History(ctx context.Context, userID, sessionID string, limit int) ([]Message, error)
	SaveMessage(ctx context.Context, userID, sessionID, role, content string) error
	Checkpoint(ctx context.Context, sessionID string, s *State) error
	LoadCheckpoint(ctx context.Context, sessionID string) (*State, error)
}

// TurnResult is the engine's only outward contract.
type TurnResult struct {
	SessionID  string `json:"session_id"`
	Response   string `json:"response"`
	NeedsHuman bool   `json:"needs_human_intervention"`
	Error      string `json:"error,omitempty"`
}

// Engine drives the stage→router→stage loop for one turn and manages
// checkpointing. It never returns an error or panics to its caller; every
// failure becomes a degraded TurnResult.
type Engine struct {
	stages     map[Stage]StageProcessor
	dispatcher Dispatcher
	router     *Router
	store      Store
	logger     *zap.Logger

	historyLimit int
	maxHops      int

	// Per-session serialization: two turns of one session never run
	// concurrently; different sessions are fully independent.
	sessionLocks sync.Map // session id -> *sync.Mutex
}

// NewEngine wires the engine. All collaborators are injected; the engine
// holds no ambient global state.
func NewEngine(router *Router, dispatcher Dispatcher, store Store, processors []StageProcessor, logger *zap.Logger) *Engine {
	stages := make(map[Stage]StageProcessor, len(processors))
	for _, p := range processors {
		stages[p.Stage()] = p
	}
	return &Engine{
		stages:       stages,
		dispatcher:   dispatcher,
		router:       router,
		store:        store,
		logger:       logger,
		historyLimit: 50,
		maxHops:      8,
	}
}

// RunTurn processes one user utterance end to end and returns the response.
func (e *Engine) RunTurn(ctx context.Context, userID, message, sessionID string) TurnResult {
	start := time.Now()
	metrics.TurnsStarted.Inc()

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	lock := e.lockSession(sessionID)
	defer lock.Unlock()

	ctx, span := tracing.StartSpan(ctx, "workflow.turn")
	defer span.End()

	history, err := e.store.History(ctx, userID, sessionID, e.historyLimit)
	if err != nil {
		// A cold history is survivable; the turn proceeds without context.
		e.logger.Warn("Failed to load history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	state := e.resumeOrNewState(ctx, sessionID, userID, message, history)
	result := e.runStages(ctx, state)

	if err := e.store.SaveMessage(ctx, userID, sessionID, "user", message); err != nil {
		e.logger.Warn("Failed to persist user message", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := e.store.SaveMessage(ctx, userID, sessionID, "assistant", result.Response); err != nil {
		e.logger.Warn("Failed to persist assistant message", zap.String("session_id", sessionID), zap.Error(err))
	}

	status := "ok"
	if result.NeedsHuman {
		status = "escalated"
	}
	if result.Error != "" {
		status = "degraded"
	}
	metrics.TurnsCompleted.WithLabelValues(status).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	e.logger.Info("Turn completed",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)),
	)
	return result
}

// resumeOrNewState continues an interrupted turn from its last checkpoint
// when it matches the incoming utterance and never finished. Anything else
// starts the turn fresh.
func (e *Engine) resumeOrNewState(ctx context.Context, sessionID, userID, message string, history []Message) *State {
	cp, err := e.store.LoadCheckpoint(ctx, sessionID)
	if err != nil {
		e.logger.Warn("Checkpoint load failed, starting fresh",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return NewState(sessionID, userID, message, history)
	}
	if cp == nil || cp.IsComplete || cp.CurrentStage == StageDone ||
		cp.UserID != userID || cp.Utterance != message {
		return NewState(sessionID, userID, message, history)
	}

	// A checkpoint snapshots the stage that just finished. A clean
	// interruption resumes at the next stage; a recorded failure re-runs the
	// stage that failed.
	if cp.Error != "" {
		cp.Error = ""
	} else {
		cp.CurrentStage = e.router.Next(cp, cp.CurrentStage)
	}
	cp.RetryCount++
	cp.History = history
	e.logger.Info("Resuming interrupted turn",
		zap.String("session_id", sessionID),
		zap.String("stage", string(cp.CurrentStage)),
		zap.Int("retry_count", cp.RetryCount),
	)
	return cp
}

func (e *Engine) runStages(ctx context.Context, state *State) TurnResult {
	for hops := 0; state.CurrentStage != StageDone && hops < e.maxHops; hops++ {
		stage := state.CurrentStage

		if err := e.runStage(ctx, stage, state); err != nil {
			// No usable result: halt the turn, surface a degraded response.
			state.Error = err.Error()
			state.RequestedNextStage = ""
			e.checkpoint(ctx, state)

			metrics.Escalations.WithLabelValues("stage_failure").Inc()
			e.logger.Error("Stage failed, terminating turn",
				zap.String("session_id", state.SessionID),
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
			return TurnResult{
				SessionID:  state.SessionID,
				Response:   DegradedResponse,
				NeedsHuman: true,
				Error:      state.Error,
			}
		}

		e.checkpoint(ctx, state)

		next := e.router.Next(state, stage)
		state.RequestedNextStage = next
		state.CurrentStage = next
	}

	state.IsComplete = true
	// Finished turns are checkpointed as complete so a repeated utterance
	// starts fresh instead of resuming.
	e.checkpoint(ctx, state)

	if state.NeedsHuman {
		metrics.Escalations.WithLabelValues("policy").Inc()
	}

	return TurnResult{
		SessionID:  state.SessionID,
		Response:   state.FinalResponse(),
		NeedsHuman: state.NeedsHuman,
		Error:      state.Error,
	}
}

func (e *Engine) runStage(ctx context.Context, stage Stage, state *State) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "stage."+string(stage))
	defer span.End()

	var err error
	switch stage {
	case StageToolDispatch:
		err = e.dispatcher.Dispatch(ctx, state)
	case StageEscalation:
		// Terminal escalation marker; no external call involved.
		state.NeedsHuman = true
	default:
		proc, ok := e.stages[stage]
		if !ok {
			err = fmt.Errorf("no processor registered for stage %q", stage)
		} else {
			err = runProtected(ctx, proc, state)
		}
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StageExecutions.WithLabelValues(string(stage), status).Inc()
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(float64(time.Since(start).Milliseconds()))
	return err
}

// runProtected converts a panicking stage processor into a stage failure so
// nothing escapes the engine.
func runProtected(ctx context.Context, proc StageProcessor, state *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", proc.Stage(), r)
		}
	}()
	return proc.Run(ctx, state)
}

// checkpoint persists the state snapshot after a stage, exactly once per
// stage transition and in stage-execution order.
func (e *Engine) checkpoint(ctx context.Context, state *State) {
	if err := e.store.Checkpoint(ctx, state.SessionID, state); err != nil {
		e.logger.Warn("Checkpoint write failed",
			zap.String("session_id", state.SessionID),
			zap.String("stage", string(state.CurrentStage)),
			zap.Error(err),
		)
		return
	}
	metrics.CheckpointWrites.Inc()
}

func (e *Engine) lockSession(sessionID string) *sync.Mutex {
	v, _ := e.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}
