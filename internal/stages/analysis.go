package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/llm"
	"github.com/deskmind/orchestrator/internal/workflow"
)

const analysisPrompt = `你是一名技术分析师，负责深入分析用户的问题并提取关键参数。

请分析用户的问题，并以 JSON 格式输出，包含以下字段：
- problem_summary: 问题摘要
- root_cause: 可能的根本原因
- key_parameters: 从问题中提取的关键参数，键值对形式（如 城市、订单号、出发站、到达站、日期、文件路径、关键词 等），没有则为空对象
- affected_areas: 受影响的方面列表
- complexity: 问题复杂度（简单/中等/复杂）
- solution_approach: 建议的解决思路
- analysis_report: 面向用户的分析报告

只输出 JSON，不要输出其他内容。`

// AnalysisProcessor performs deep analysis: summary, root cause, extracted
// parameters, and a complexity assessment that drives routing.
type AnalysisProcessor struct {
	model  llm.ChatModel
	logger *zap.Logger
}

func NewAnalysisProcessor(model llm.ChatModel, logger *zap.Logger) *AnalysisProcessor {
	return &AnalysisProcessor{model: model, logger: logger}
}

func (p *AnalysisProcessor) Stage() workflow.Stage { return workflow.StageAnalysis }

func (p *AnalysisProcessor) Run(ctx context.Context, s *workflow.State) error {
	var intakeContext string
	if s.Intake != nil {
		intakeContext = fmt.Sprintf("初步分类：%s（紧急程度：%s）", s.Intake.ProblemCategory, s.Intake.Urgency)
		if len(s.Intake.MissingInfo) > 0 {
			intakeContext += "\n缺少信息：" + strings.Join(s.Intake.MissingInfo, "、")
		}
	}

	raw, err := p.model.Complete(ctx, buildPrompt(analysisPrompt, s, intakeContext))
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	result := parseAnalysis(raw)
	s.Analysis = result

	p.logger.Debug("Analysis completed",
		zap.String("session_id", s.SessionID),
		zap.String("complexity", string(result.Complexity)),
		zap.Int("key_parameters", len(result.KeyParameters)),
	)
	return nil
}

func parseAnalysis(raw string) *workflow.AnalysisResult {
	fields, err := extractJSON(raw)
	if err != nil {
		return &workflow.AnalysisResult{
			ProblemSummary: raw,
			Complexity:     workflow.ComplexityMedium,
			AnalysisReport: raw,
		}
	}

	return &workflow.AnalysisResult{
		ProblemSummary:   stringField(fields, "problem_summary", ""),
		RootCause:        stringField(fields, "root_cause", ""),
		KeyParameters:    stringMapField(fields, "key_parameters"),
		AffectedAreas:    stringSliceField(fields, "affected_areas"),
		Complexity:       workflow.NormalizeComplexity(stringField(fields, "complexity", "")),
		SolutionApproach: stringField(fields, "solution_approach", ""),
		AnalysisReport:   stringField(fields, "analysis_report", ""),
	}
}
