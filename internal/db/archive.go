// Package db archives conversations to a relational store for audit and
// later analysis. Writes are asynchronous so a slow or unavailable database
// never blocks a turn.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/metrics"
)

// Config holds archive database configuration. Driver selects "postgres" or
// "sqlite3"; DSN is driver-specific.
type Config struct {
	Driver          string
	DSN             string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
	QueueSize       int
	Workers         int
}

// Archive manages the database connection and the async write queue.
type Archive struct {
	db     *sqlx.DB
	logger *zap.Logger

	writeQueue chan writeRequest
	stopCh     chan struct{}
	workerWg   sync.WaitGroup
	stopOnce   sync.Once
}

type writeRequest struct {
	kind string
	fn   func(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	summary    TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY,
	session_id  TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	utterance   TEXT NOT NULL,
	response    TEXT NOT NULL,
	final_stage TEXT NOT NULL,
	needs_human BOOLEAN NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
`

// New opens the archive database, applies the schema, and starts the write
// workers.
func New(config Config, logger *zap.Logger) (*Archive, error) {
	if config.Driver == "" {
		config.Driver = "sqlite3"
	}
	if config.DSN == "" {
		config.DSN = "file:deskmind.db?_journal_mode=WAL"
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 25
	}
	if config.IdleConnections == 0 {
		config.IdleConnections = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 5 * time.Minute
	}
	if config.QueueSize == 0 {
		config.QueueSize = 1000
	}
	if config.Workers == 0 {
		config.Workers = 4
	}

	rawDB, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	rawDB.SetMaxOpenConns(config.MaxConnections)
	rawDB.SetMaxIdleConns(config.IdleConnections)
	rawDB.SetConnMaxLifetime(config.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}
	if _, err := rawDB.ExecContext(ctx, schema); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}

	a := NewWithDB(rawDB, config, logger)
	logger.Info("Archive initialized",
		zap.String("driver", config.Driver),
		zap.Int("workers", config.Workers),
	)
	return a, nil
}

// NewWithDB builds an archive over an existing connection. Tests use this
// with sqlmock.
func NewWithDB(rawDB *sqlx.DB, config Config, logger *zap.Logger) *Archive {
	if config.QueueSize == 0 {
		config.QueueSize = 1000
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	a := &Archive{
		db:         rawDB,
		logger:     logger,
		writeQueue: make(chan writeRequest, config.QueueSize),
		stopCh:     make(chan struct{}),
	}
	for i := 0; i < config.Workers; i++ {
		a.workerWg.Add(1)
		go a.writeWorker(i)
	}
	return a
}

func (a *Archive) writeWorker(id int) {
	defer a.workerWg.Done()
	for {
		select {
		case <-a.stopCh:
			// Drain what's already queued before exiting.
			for {
				select {
				case req := <-a.writeQueue:
					a.process(req)
				default:
					a.logger.Debug("Archive worker stopped", zap.Int("worker_id", id))
					return
				}
			}
		case req := <-a.writeQueue:
			a.process(req)
		}
	}
}

func (a *Archive) process(req writeRequest) {
	metrics.ArchiveQueueDepth.Set(float64(len(a.writeQueue)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := req.fn(ctx); err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		a.logger.Error("Archive write failed",
			zap.String("kind", req.kind),
			zap.Error(err),
		)
		return
	}
	metrics.ArchiveWrites.WithLabelValues("ok").Inc()
}

// enqueue submits a write; the queue never blocks the caller. On overflow the
// write is dropped and counted.
func (a *Archive) enqueue(kind string, fn func(ctx context.Context) error) {
	select {
	case a.writeQueue <- writeRequest{kind: kind, fn: fn}:
		metrics.ArchiveQueueDepth.Set(float64(len(a.writeQueue)))
	default:
		metrics.ArchiveWrites.WithLabelValues("dropped").Inc()
		a.logger.Warn("Archive queue full, dropping write", zap.String("kind", kind))
	}
}

// RecordMessage archives one conversation message asynchronously.
func (a *Archive) RecordMessage(sessionID, userID, role, content string) {
	now := time.Now()
	a.enqueue("message", func(ctx context.Context) error {
		if err := a.upsertSession(ctx, sessionID, userID, now); err != nil {
			return err
		}
		_, err := a.db.ExecContext(ctx,
			a.db.Rebind(`INSERT INTO messages (session_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
			sessionID, userID, role, content, now,
		)
		return err
	})
}

// RecordTurn archives one turn's outcome asynchronously.
func (a *Archive) RecordTurn(rec TurnRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	a.enqueue("turn", func(ctx context.Context) error {
		_, err := a.db.ExecContext(ctx,
			a.db.Rebind(`INSERT INTO turns (session_id, user_id, utterance, response, final_stage, needs_human, error, duration_ms, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.SessionID, rec.UserID, rec.Utterance, rec.Response, rec.FinalStage,
			rec.NeedsHuman, rec.Error, rec.DurationMS, rec.CreatedAt,
		)
		return err
	})
}

func (a *Archive) upsertSession(ctx context.Context, sessionID, userID string, now time.Time) error {
	res, err := a.db.ExecContext(ctx,
		a.db.Rebind(`UPDATE sessions SET updated_at = ? WHERE id = ?`),
		now, sessionID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = a.db.ExecContext(ctx,
		a.db.Rebind(`INSERT INTO sessions (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		sessionID, userID, now, now,
	)
	return err
}

// SessionMessages returns a session's archived messages, oldest first.
func (a *Archive) SessionMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []MessageRecord
	err := a.db.SelectContext(ctx, &out,
		a.db.Rebind(`SELECT id, session_id, user_id, role, content, created_at
			FROM messages WHERE session_id = ? ORDER BY id ASC LIMIT ?`),
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived messages: %w", err)
	}
	return out, nil
}

// SessionTurns returns a session's archived turn outcomes, oldest first.
func (a *Archive) SessionTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []TurnRecord
	err := a.db.SelectContext(ctx, &out,
		a.db.Rebind(`SELECT id, session_id, user_id, utterance, response, final_stage, needs_human, error, duration_ms, created_at
			FROM turns WHERE session_id = ? ORDER BY id ASC LIMIT ?`),
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived turns: %w", err)
	}
	return out, nil
}

// Ping verifies database connectivity for health checks.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close stops the workers, drains the queue, and closes the connection.
func (a *Archive) Close() error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.workerWg.Wait()
	return a.db.Close()
}
