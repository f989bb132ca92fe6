package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
	"github.com/deskmind/orchestrator/internal/workflow"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	wrapped := circuitbreaker.NewRedisWrapper(client, circuitbreaker.DefaultConfig(), zaptest.NewLogger(t))
	return NewStoreWithClient(wrapped, time.Hour, zaptest.NewLogger(t)), mr
}

func TestSaveMessageAndHistory(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "user", "你好"))
	require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "assistant", "您好，有什么可以帮您？"))

	history, err := st.History(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, workflow.Message{Role: "user", Content: "你好"}, history[0])
	assert.Equal(t, "assistant", history[1].Role)
}

func TestHistoryLimitReturnsMostRecent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "user", string(rune('a'+i))))
	}

	history, err := st.History(ctx, "u1", "s1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "d", history[0].Content)
	assert.Equal(t, "e", history[1].Content)
}

func TestHistoryMissingSessionIsEmpty(t *testing.T) {
	st, _ := newTestStore(t)

	history, err := st.History(context.Background(), "u1", "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryDoesNotLeakAcrossUsers(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, "owner", "s1", "user", "私密内容"))

	history, err := st.History(ctx, "intruder", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryCap(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < maxHistory+20; i++ {
		require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "user", "m"))
	}

	history, err := st.History(ctx, "u1", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, maxHistory)
}

func TestCheckpointRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	state := workflow.NewState("s1", "u1", "现在几点", nil)
	state.CurrentStage = workflow.StageSolution
	state.AddToolResult("time_info", workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"time": "2024-01-15 10:30:00"},
	})

	require.NoError(t, st.Checkpoint(ctx, "s1", state))

	loaded, err := st.LoadCheckpoint(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, workflow.StageSolution, loaded.CurrentStage)
	assert.Equal(t, "现在几点", loaded.Utterance)

	r, ok := loaded.ToolResultFor("time_info")
	require.True(t, ok)
	assert.Equal(t, "2024-01-15 10:30:00", r.Data["time"])
}

func TestCheckpointOverwrites(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	first := workflow.NewState("s1", "u1", "hello", nil)
	first.CurrentStage = workflow.StageIntake
	require.NoError(t, st.Checkpoint(ctx, "s1", first))

	second := workflow.NewState("s1", "u1", "hello", nil)
	second.CurrentStage = workflow.StageSolution
	require.NoError(t, st.Checkpoint(ctx, "s1", second))

	loaded, err := st.LoadCheckpoint(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StageSolution, loaded.CurrentStage)
}

func TestLoadCheckpointMissingIsNil(t *testing.T) {
	st, _ := newTestStore(t)

	loaded, err := st.LoadCheckpoint(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionExpiry(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "user", "你好"))

	// Drop the local cache so the next read hits Redis, then expire the key.
	st.mu.Lock()
	delete(st.localCache, "s1")
	st.mu.Unlock()
	mr.FastForward(2 * time.Hour)

	history, err := st.History(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteSessionRemovesCheckpoint(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, "u1", "s1", "user", "你好"))
	require.NoError(t, st.Checkpoint(ctx, "s1", workflow.NewState("s1", "u1", "你好", nil)))

	require.NoError(t, st.DeleteSession(ctx, "s1"))

	history, err := st.History(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	loaded, err := st.LoadCheckpoint(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
