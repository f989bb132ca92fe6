package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestArchive(t *testing.T) (*Archive, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	// One worker keeps write ordering deterministic for the expectations.
	a := NewWithDB(sqlx.NewDb(mockDB, "sqlmock"), Config{Workers: 1, QueueSize: 16}, zaptest.NewLogger(t))
	return a, mock
}

func TestRecordMessageInsertsSessionAndMessage(t *testing.T) {
	a, mock := newTestArchive(t)

	// First message: session row does not exist yet.
	mock.ExpectExec("UPDATE sessions SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s1", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("s1", "u1", "user", "你好", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectClose()

	a.RecordMessage("s1", "u1", "user", "你好")
	require.NoError(t, a.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMessageReusesExistingSession(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec("UPDATE sessions SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("s1", "u1", "assistant", "答复", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	mock.ExpectClose()

	a.RecordMessage("s1", "u1", "assistant", "答复")
	require.NoError(t, a.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTurn(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec("INSERT INTO turns").
		WithArgs("s1", "u1", "现在几点", "当前时间是：10:30", "done", false, "", int64(120), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	a.RecordTurn(TurnRecord{
		SessionID:  "s1",
		UserID:     "u1",
		Utterance:  "现在几点",
		Response:   "当前时间是：10:30",
		FinalStage: "done",
		DurationMS: 120,
	})
	require.NoError(t, a.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteFailureDoesNotPropagate(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec("INSERT INTO turns").
		WillReturnError(assert.AnError)
	mock.ExpectClose()

	// A failing write must never panic or surface to the caller.
	assert.NotPanics(t, func() {
		a.RecordTurn(TurnRecord{SessionID: "s1", UserID: "u1"})
		require.NoError(t, a.Close())
	})
}

func TestQueueOverflowDrops(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)

	a := &Archive{
		db:         sqlx.NewDb(mockDB, "sqlmock"),
		logger:     zaptest.NewLogger(t),
		writeQueue: make(chan writeRequest, 1),
		stopCh:     make(chan struct{}),
	}
	// No workers are draining; the second enqueue must drop, not block.
	done := make(chan struct{})
	go func() {
		a.RecordTurn(TurnRecord{SessionID: "s1"})
		a.RecordTurn(TurnRecord{SessionID: "s2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestSessionMessagesQuery(t *testing.T) {
	a, mock := newTestArchive(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "user_id", "role", "content", "created_at"}).
		AddRow(1, "s1", "u1", "user", "你好", now).
		AddRow(2, "s1", "u1", "assistant", "您好", now)
	mock.ExpectQuery("SELECT id, session_id, user_id, role, content, created_at").
		WithArgs("s1", 100).
		WillReturnRows(rows)

	msgs, err := a.SessionMessages(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "你好", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
}
