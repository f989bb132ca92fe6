package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deskmind/orchestrator/internal/intent"
	"github.com/deskmind/orchestrator/internal/tools"
	"github.com/deskmind/orchestrator/internal/workflow"
)

// fakeInvoker records invocations and returns canned results per kind.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   map[string]map[string]string
	results map[string]tools.Result
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		calls:   make(map[string]map[string]string),
		results: make(map[string]tools.Result),
	}
}

func (f *fakeInvoker) Invoke(_ context.Context, kind string, args map[string]string) tools.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind] = args
	if r, ok := f.results[kind]; ok {
		return r
	}
	return tools.Ok(map[string]interface{}{})
}

func newTestDispatcher(t *testing.T, invoker Invoker) *Dispatcher {
	t.Helper()
	return New(invoker, intent.NewClassifier(intent.DefaultLexicon()), Config{
		DefaultLogPath: "/app/logs/app.log",
	}, zaptest.NewLogger(t))
}

func TestDispatchTimeQuery(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "现在几点", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	_, called := invoker.calls["time_info"]
	assert.True(t, called)
	_, ok := s.ToolResultFor("time_info")
	assert.True(t, ok)
}

func TestDispatchDatePreferredOverTime(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "今天几号", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	_, dateCalled := invoker.calls["date_info"]
	_, timeCalled := invoker.calls["time_info"]
	assert.True(t, dateCalled)
	assert.False(t, timeCalled)
}

func TestDispatchWeatherCityFromStructuredParams(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "那边天气如何", nil)
	s.Analysis = &workflow.AnalysisResult{KeyParameters: map[string]string{"城市": "杭州"}}
	require.NoError(t, d.Dispatch(context.Background(), s))

	args := invoker.calls["weather"]
	require.NotNil(t, args)
	assert.Equal(t, "杭州", args["city"])
}

func TestDispatchWeatherCityFromText(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "北京今天天气怎么样", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	args := invoker.calls["weather"]
	require.NotNil(t, args)
	assert.Equal(t, "北京", args["city"])
}

func TestDispatchTrainStationsFromText(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "我想查北京到上海的火车票", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	args := invoker.calls["train_tickets"]
	require.NotNil(t, args)
	assert.Equal(t, "北京", args["from_station"])
	assert.Equal(t, "上海", args["to_station"])
}

func TestDispatchSkipsUnresolvableCategory(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	// Train intent with no stations anywhere: the category is skipped, not
	// recorded as a failure.
	s := workflow.NewState("s1", "u1", "我想买火车票", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	_, called := invoker.calls["train_tickets"]
	assert.False(t, called)
	_, attempted := s.ToolResultFor("train_tickets")
	assert.False(t, attempted)
}

func TestDispatchOrderNumberFromText(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.results["order_info"] = tools.Fail("未找到订单 202401150001，请核对订单号")
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "订单202401150001怎么还没到", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	args := invoker.calls["order_info"]
	require.NotNil(t, args)
	assert.Equal(t, "202401150001", args["order_id"])

	// Failures are stored, never returned as errors.
	r, ok := s.ToolResultFor("order_info")
	require.True(t, ok)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "未找到订单")
}

func TestDispatchLogFileDefaultPath(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "帮我看看日志里有什么报错", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	args := invoker.calls["file_content"]
	require.NotNil(t, args)
	assert.Equal(t, "/app/logs/app.log", args["file_path"])
}

func TestDispatchMergesConcurrentResults(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	// Weather and train intents in one utterance produce two results.
	s := workflow.NewState("s1", "u1", "查一下北京天气，还有北京到上海的火车票", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))

	_, weather := s.ToolResultFor("weather")
	_, train := s.ToolResultFor("train_tickets")
	assert.True(t, weather)
	assert.True(t, train)
}

func TestDispatchNoIntentIsNoOp(t *testing.T) {
	invoker := newFakeInvoker()
	d := newTestDispatcher(t, invoker)

	s := workflow.NewState("s1", "u1", "谢谢", nil)
	require.NoError(t, d.Dispatch(context.Background(), s))
	assert.Empty(t, s.ToolResults)
}
