// Package dispatch translates an utterance plus the analysis stage's
// extracted parameters into tool-provider invocations and merges the
// outcomes into workflow state.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deskmind/orchestrator/internal/intent"
	"github.com/deskmind/orchestrator/internal/tools"
	"github.com/deskmind/orchestrator/internal/workflow"
)

// Invoker is the capability surface the dispatcher needs from the tool
// layer. tools.Registry satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, kind string, args map[string]string) tools.Result
}

// Config carries the dispatcher's tunable knobs.
type Config struct {
	// DefaultLogPath is used for log-inspection queries that name no file.
	DefaultLogPath string
}

// Dispatcher implements the tool-dispatch pseudo-stage.
type Dispatcher struct {
	invoker    Invoker
	classifier *intent.Classifier
	config     Config
	logger     *zap.Logger
}

// New builds a dispatcher.
func New(invoker Invoker, classifier *intent.Classifier, config Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		invoker:    invoker,
		classifier: classifier,
		config:     config,
		logger:     logger,
	}
}

// invocation is one planned tool call.
type invocation struct {
	kind string
	args map[string]string
}

// Dispatch plans one invocation per matched category whose arguments
// resolve, runs them concurrently, and joins all results into state before
// returning. A category with no resolvable arguments is skipped entirely: an
// absent key in tool results means "not attempted", distinct from a stored
// failure. Provider failures are stored, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, s *workflow.State) error {
	plan := d.plan(s)
	if len(plan) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, inv := range plan {
		inv := inv
		g.Go(func() error {
			result := d.invoker.Invoke(gctx, inv.kind, inv.args)
			mu.Lock()
			s.AddToolResult(inv.kind, workflow.ToolResult{
				Success: result.Success,
				Data:    result.Data,
				Error:   result.Error,
			})
			mu.Unlock()
			return nil
		})
	}
	// Join point: every planned invocation has merged its result by now.
	_ = g.Wait()

	d.logger.Info("Tool dispatch completed",
		zap.String("session_id", s.SessionID),
		zap.Int("invocations", len(plan)),
	)
	return nil
}

// plan resolves arguments for every matched intent category.
func (d *Dispatcher) plan(s *workflow.State) []invocation {
	tags := d.classifier.Classify(s.Utterance)
	params := extractedParams(s)

	var plan []invocation
	add := func(kind string, args map[string]string, ok bool) {
		if ok {
			plan = append(plan, invocation{kind: kind, args: args})
		}
	}

	if tags.Has(intent.CategoryWeather) {
		args, ok := resolveWeatherArgs(s.Utterance, params)
		add("weather", args, ok)
	}
	if tags.Has(intent.CategoryAddress) {
		args, ok := resolveAddressArgs(s.Utterance, params)
		add("address", args, ok)
	}
	if tags.Has(intent.CategoryPOI) {
		args, ok := resolvePOIArgs(params)
		add("poi_search", args, ok)
	}
	if tags.Has(intent.CategoryTrain) {
		args, ok := resolveTrainArgs(s.Utterance, params)
		add("train_tickets", args, ok)
	}
	if tags.Has(intent.CategoryDate) {
		add("date_info", resolveTimezoneArgs(params), true)
	} else if tags.Has(intent.CategoryTime) {
		add("time_info", resolveTimezoneArgs(params), true)
	}
	if tags.Has(intent.CategoryKnowledge) {
		add("knowledge_base", resolveKnowledgeArgs(s.Utterance, params), true)
	}
	if tags.Has(intent.CategoryFile) {
		args, ok := resolveFileArgs(s.Utterance, params, d.config.DefaultLogPath)
		add("file_content", args, ok)
	}
	if tags.Has(intent.CategoryOrder) {
		args, ok := resolveOrderArgs(s.Utterance, params)
		add("order_info", args, ok)
	}
	return plan
}

// extractedParams pulls the analysis stage's key parameters, if any.
func extractedParams(s *workflow.State) map[string]string {
	if s.Analysis == nil || s.Analysis.KeyParameters == nil {
		return map[string]string{}
	}
	return s.Analysis.KeyParameters
}
