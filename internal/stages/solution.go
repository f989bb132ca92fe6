package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/llm"
	"github.com/deskmind/orchestrator/internal/workflow"
)

const solutionPrompt = `你是一名解决方案专家，负责根据前面的分析和工具查询结果，给出最终答复。

要求：
- 答复要具体、可操作，直接面向用户
- 如果有工具查询结果，答复必须基于查询结果，不要编造数据
- 如果查询失败，如实告知用户并给出替代建议

请以 JSON 格式输出，包含以下字段：
- final_response: 给用户的最终答复
- needs_confirmation: 方案是否需要用户确认后才能执行（true/false）

只输出 JSON，不要输出其他内容。`

// SolutionProcessor synthesizes the final answer. Turns that carry only
// directly renderable tool results (clock, weather, train schedules reached
// via the fast path) are answered without a model call.
type SolutionProcessor struct {
	model  llm.ChatModel
	logger *zap.Logger
}

func NewSolutionProcessor(model llm.ChatModel, logger *zap.Logger) *SolutionProcessor {
	return &SolutionProcessor{model: model, logger: logger}
}

func (p *SolutionProcessor) Stage() workflow.Stage { return workflow.StageSolution }

func (p *SolutionProcessor) Run(ctx context.Context, s *workflow.State) error {
	// Fast path: no analysis happened, so this was a simple lookup turn.
	if s.Analysis == nil {
		if direct := renderDirect(s); direct != "" {
			s.Solution = &workflow.SolutionResult{FinalResponse: direct}
			p.logger.Debug("Solution rendered directly",
				zap.String("session_id", s.SessionID),
				zap.Int("tool_results", len(s.ToolResults)),
			)
			return nil
		}
	}

	var analysisContext string
	if s.Analysis != nil {
		analysisContext = "分析结论：" + s.Analysis.AnalysisReport
		if s.Analysis.SolutionApproach != "" {
			analysisContext += "\n建议思路：" + s.Analysis.SolutionApproach
		}
	}

	raw, err := p.model.Complete(ctx, buildPrompt(solutionPrompt, s, analysisContext, renderToolContext(s)))
	if err != nil {
		return fmt.Errorf("solution: %w", err)
	}

	s.Solution = parseSolution(raw)
	p.logger.Debug("Solution synthesized",
		zap.String("session_id", s.SessionID),
		zap.Bool("needs_confirmation", s.Solution.NeedsConfirmation),
	)
	return nil
}

// parseSolution falls back to treating the whole response as the answer when
// the model skips the JSON envelope.
func parseSolution(raw string) *workflow.SolutionResult {
	fields, err := extractJSON(raw)
	if err != nil {
		return &workflow.SolutionResult{FinalResponse: raw}
	}
	return &workflow.SolutionResult{
		FinalResponse:     stringField(fields, "final_response", raw),
		NeedsConfirmation: boolField(fields, "needs_confirmation", false),
	}
}
