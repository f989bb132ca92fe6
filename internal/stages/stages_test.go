package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deskmind/orchestrator/internal/llm"
	"github.com/deskmind/orchestrator/internal/workflow"
)

func TestIntakeProcessorRun(t *testing.T) {
	model := &llm.MockModel{Responses: []string{
		`{"problem_category": "技术问题", "urgency": "高", "needs_analysis": true, "response": "我来帮您排查"}`,
	}}
	p := NewIntakeProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "系统打不开了", nil)
	require.NoError(t, p.Run(context.Background(), s))

	require.NotNil(t, s.Intake)
	assert.Equal(t, "技术问题", s.Intake.ProblemCategory)
	assert.Equal(t, "高", s.Intake.Urgency)
	assert.True(t, s.Intake.NeedsAnalysis)
}

func TestIntakeProcessorPropagatesModelError(t *testing.T) {
	model := &llm.MockModel{Err: errors.New("timeout")}
	p := NewIntakeProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "你好", nil)
	err := p.Run(context.Background(), s)
	assert.Error(t, err)
	assert.Nil(t, s.Intake)
}

func TestIntakeProcessorIncludesHistory(t *testing.T) {
	model := &llm.MockModel{Responses: []string{`{"needs_analysis": false, "response": "好的"}`}}
	p := NewIntakeProcessor(model, zaptest.NewLogger(t))

	history := []workflow.Message{
		{Role: "user", Content: "之前的问题"},
		{Role: "assistant", Content: "之前的回答"},
	}
	s := workflow.NewState("s1", "u1", "继续", history)
	require.NoError(t, p.Run(context.Background(), s))

	require.Len(t, model.Prompts, 1)
	prompt := model.Prompts[0]
	// system + 2 history turns + current utterance
	require.Len(t, prompt, 4)
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, "之前的问题", prompt[1].Content)
	assert.Equal(t, llm.RoleAssistant, prompt[2].Role)
	assert.Equal(t, "继续", prompt[3].Content)
}

func TestAnalysisProcessorRun(t *testing.T) {
	model := &llm.MockModel{Responses: []string{
		`{"problem_summary": "车票查询", "key_parameters": {"出发站": "北京", "到达站": "上海"}, "complexity": "中等", "analysis_report": "需要查询车次"}`,
	}}
	p := NewAnalysisProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "帮我查北京到上海的火车票", nil)
	s.Intake = &workflow.IntakeResult{ProblemCategory: "咨询", Urgency: "中"}
	require.NoError(t, p.Run(context.Background(), s))

	require.NotNil(t, s.Analysis)
	assert.Equal(t, workflow.ComplexityMedium, s.Analysis.Complexity)
	assert.Equal(t, "北京", s.Analysis.KeyParameters["出发站"])

	// The intake classification is forwarded as context.
	last := model.Prompts[0][len(model.Prompts[0])-1]
	assert.Contains(t, last.Content, "初步分类：咨询")
}

func TestSolutionProcessorDirectRenderSkipsModel(t *testing.T) {
	model := &llm.MockModel{}
	p := NewSolutionProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "现在几点", nil)
	s.AddToolResult("time_info", timeResult())
	require.NoError(t, p.Run(context.Background(), s))

	require.NotNil(t, s.Solution)
	assert.Equal(t, "当前时间是：2024-01-15 10:30:00（Asia/Shanghai）", s.Solution.FinalResponse)
	assert.Empty(t, model.Prompts, "direct rendering must not call the model")
}

func TestSolutionProcessorUsesModelAfterAnalysis(t *testing.T) {
	model := &llm.MockModel{Responses: []string{
		`{"final_response": "您的订单正在运输中，预计明天送达。", "needs_confirmation": false}`,
	}}
	p := NewSolutionProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "订单202401150001怎么还没到", nil)
	s.Analysis = &workflow.AnalysisResult{
		Complexity:     workflow.ComplexityMedium,
		AnalysisReport: "用户查询订单物流",
	}
	s.AddToolResult("order_info", workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"order_id": "202401150001", "item": "机械键盘", "status": "运输中"},
	})
	require.NoError(t, p.Run(context.Background(), s))

	require.NotNil(t, s.Solution)
	assert.Equal(t, "您的订单正在运输中，预计明天送达。", s.Solution.FinalResponse)

	// Tool results and the analysis report both reach the prompt.
	last := model.Prompts[0][len(model.Prompts[0])-1]
	assert.Contains(t, last.Content, "用户查询订单物流")
	assert.Contains(t, last.Content, "运输中")
}

func TestSolutionProcessorModelErrorPropagates(t *testing.T) {
	model := &llm.MockModel{Err: errors.New("rate limited")}
	p := NewSolutionProcessor(model, zaptest.NewLogger(t))

	s := workflow.NewState("s1", "u1", "帮我分析这个问题", nil)
	s.Analysis = &workflow.AnalysisResult{AnalysisReport: "报告"}
	assert.Error(t, p.Run(context.Background(), s))
	assert.Nil(t, s.Solution)
}
