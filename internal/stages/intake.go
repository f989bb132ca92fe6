// Package stages holds the model-backed stage processors: intake triage,
// deep analysis, and solution synthesis.
package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/llm"
	"github.com/deskmind/orchestrator/internal/workflow"
)

const intakePrompt = `你是一名客服前台接待员，负责对用户的问题进行初步分类和分流。

请分析用户的问题，并以 JSON 格式输出，包含以下字段：
- problem_category: 问题类别（订单问题/技术问题/账户问题/咨询/其他）
- urgency: 紧急程度（高/中/低）
- needs_analysis: 是否需要深入分析（true/false）。简单问候或可以直接回答的问题为 false
- response: 对用户的初步答复。如果问题可以直接回答，给出完整答复
- missing_info: 缺少的关键信息列表（如订单号、错误信息等），没有则为空数组
- handoff: 可选。如果问题明确只需要给出最终答复，填 "solution"

只输出 JSON，不要输出其他内容。`

// IntakeProcessor triages the utterance: category, urgency, whether deeper
// analysis is warranted, and an initial response.
type IntakeProcessor struct {
	model  llm.ChatModel
	logger *zap.Logger
}

func NewIntakeProcessor(model llm.ChatModel, logger *zap.Logger) *IntakeProcessor {
	return &IntakeProcessor{model: model, logger: logger}
}

func (p *IntakeProcessor) Stage() workflow.Stage { return workflow.StageIntake }

func (p *IntakeProcessor) Run(ctx context.Context, s *workflow.State) error {
	raw, err := p.model.Complete(ctx, buildPrompt(intakePrompt, s))
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}

	result := parseIntake(raw)
	s.Intake = result

	p.logger.Debug("Intake classified",
		zap.String("session_id", s.SessionID),
		zap.String("category", result.ProblemCategory),
		zap.String("urgency", result.Urgency),
		zap.Bool("needs_analysis", result.NeedsAnalysis),
	)
	return nil
}

// parseIntake coerces the model output into a usable result. A response that
// cannot be parsed still triages: the raw text becomes the initial response
// and analysis is requested so the turn keeps moving.
func parseIntake(raw string) *workflow.IntakeResult {
	fields, err := extractJSON(raw)
	if err != nil {
		return &workflow.IntakeResult{
			ProblemCategory: "其他",
			Urgency:         "中",
			NeedsAnalysis:   true,
			Response:        raw,
		}
	}

	result := &workflow.IntakeResult{
		ProblemCategory: stringField(fields, "problem_category", "其他"),
		Urgency:         stringField(fields, "urgency", "中"),
		NeedsAnalysis:   boolField(fields, "needs_analysis", true),
		Response:        stringField(fields, "response", ""),
		MissingInfo:     stringSliceField(fields, "missing_info"),
	}
	// Only a solution handoff is honored; anything else routes normally.
	if stringField(fields, "handoff", "") == string(workflow.StageSolution) {
		result.Handoff = workflow.StageSolution
	}
	return result
}
