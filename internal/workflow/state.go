package workflow

import (
	"strings"
	"time"
)

// Stage names one phase of the per-turn workflow.
type Stage string

const (
	StageIntake       Stage = "intake"
	StageAnalysis     Stage = "analysis"
	StageToolDispatch Stage = "tool_dispatch"
	StageSolution     Stage = "solution"
	StageEscalation   Stage = "escalation"
	StageDone         Stage = "done"
)

// Complexity is the analysis stage's assessment of the problem.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// IntakeResult is the triage stage's classification of the utterance.
type IntakeResult struct {
	ProblemCategory string   `json:"problem_category"`
	Urgency         string   `json:"urgency"` // "high", "medium", "low"
	NeedsAnalysis   bool     `json:"needs_analysis"`
	Response        string   `json:"response"`
	MissingInfo     []string `json:"missing_info,omitempty"`
	// Handoff nominates a stage directly, bypassing the default route.
	Handoff Stage `json:"handoff,omitempty"`
}

// AnalysisResult is the deep-analysis stage's report.
type AnalysisResult struct {
	ProblemSummary   string            `json:"problem_summary"`
	RootCause        string            `json:"root_cause"`
	KeyParameters    map[string]string `json:"key_parameters,omitempty"`
	AffectedAreas    []string          `json:"affected_areas,omitempty"`
	Complexity       Complexity        `json:"complexity"`
	SolutionApproach string            `json:"solution_approach"`
	AnalysisReport   string            `json:"analysis_report"`
}

// SolutionResult is the synthesis stage's answer.
type SolutionResult struct {
	FinalResponse     string `json:"final_response"`
	NeedsConfirmation bool   `json:"needs_confirmation"`
}

// ToolResult is the outcome of one tool-provider invocation. An absent key in
// State.ToolResults means "not attempted"; Success=false means "attempted and
// failed".
type ToolResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// State is the single record threaded through one turn of the workflow.
// It is owned exclusively by the in-flight turn; cross-turn continuity is via
// session history and checkpoints only.
type State struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	Utterance string    `json:"utterance"`
	History   []Message `json:"history,omitempty"`

	Intake   *IntakeResult   `json:"intake_result,omitempty"`
	Analysis *AnalysisResult `json:"analysis_result,omitempty"`
	Solution *SolutionResult `json:"solution_result,omitempty"`

	ToolResults map[string]ToolResult `json:"tool_results,omitempty"`

	CurrentStage       Stage `json:"current_stage"`
	RequestedNextStage Stage `json:"requested_next_stage,omitempty"`

	IsComplete bool `json:"is_complete"`
	NeedsHuman bool `json:"needs_human"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState constructs a fresh per-turn state positioned at the intake stage.
func NewState(sessionID, userID, utterance string, history []Message) *State {
	now := time.Now()
	return &State{
		SessionID:    sessionID,
		UserID:       userID,
		Utterance:    utterance,
		History:      history,
		ToolResults:  make(map[string]ToolResult),
		CurrentStage: StageIntake,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddToolResult records a tool outcome under its result-kind key. Entries are
// additive within a turn; an existing entry is never removed.
func (s *State) AddToolResult(kind string, result ToolResult) {
	if s.ToolResults == nil {
		s.ToolResults = make(map[string]ToolResult)
	}
	s.ToolResults[kind] = result
	s.UpdatedAt = time.Now()
}

// ToolResultFor returns the tool result for a kind, if attempted.
func (s *State) ToolResultFor(kind string) (ToolResult, bool) {
	r, ok := s.ToolResults[kind]
	return r, ok
}

// FinalResponse extracts the user-facing answer: the most finished non-empty
// stage result wins (solution, then analysis, then intake), falling back to a
// generic clarification request.
func (s *State) FinalResponse() string {
	if s.Solution != nil && strings.TrimSpace(s.Solution.FinalResponse) != "" {
		return s.Solution.FinalResponse
	}
	if s.Analysis != nil && strings.TrimSpace(s.Analysis.AnalysisReport) != "" {
		return s.Analysis.AnalysisReport
	}
	if s.Intake != nil && strings.TrimSpace(s.Intake.Response) != "" {
		return s.Intake.Response
	}
	return FallbackResponse
}

// RecentHistory returns the last n history messages for prompt context.
func (s *State) RecentHistory(n int) []Message {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Degraded responses shown when the workflow cannot produce an answer.
const (
	FallbackResponse = "抱歉，我无法理解您的问题，请重新描述一下。"
	DegradedResponse = "抱歉，处理过程中出现了错误，请稍后重试。"
)

// NormalizeComplexity maps free-form model output onto the three levels.
// Chinese labels from the analysis prompt are accepted alongside English.
func NormalizeComplexity(raw string) Complexity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "简单", "low", "simple":
		return ComplexityLow
	case "复杂", "high", "complex":
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}
