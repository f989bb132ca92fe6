// Package session persists conversation history and workflow checkpoints in
// Redis, with a small local cache in front for hot sessions.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
	"github.com/deskmind/orchestrator/internal/metrics"
	"github.com/deskmind/orchestrator/internal/workflow"
)

const maxHistory = 100

// Store implements the engine's persistence contract over Redis.
type Store struct {
	client *circuitbreaker.RedisWrapper
	logger *zap.Logger
	ttl    time.Duration

	mu          sync.RWMutex
	localCache  map[string]*Session
	cacheAccess map[string]time.Time
	maxSessions int
}

// NewStore connects to Redis and verifies the connection before returning.
func NewStore(redisAddr string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	redisPassword := os.Getenv("REDIS_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	wrapped := circuitbreaker.NewRedisWrapper(client, circuitbreaker.DefaultConfig(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrapped.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStoreWithClient(wrapped, ttl, logger), nil
}

// NewStoreWithClient builds a store over an existing wrapped client. Tests
// use this with a miniredis-backed client.
func NewStoreWithClient(client *circuitbreaker.RedisWrapper, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		client:      client,
		logger:      logger,
		ttl:         ttl,
		localCache:  make(map[string]*Session),
		cacheAccess: make(map[string]time.Time),
		maxSessions: 10000,
	}
}

// History returns the most recent messages of a session, oldest first. A
// missing session yields empty history, not an error.
func (st *Store) History(ctx context.Context, userID, sessionID string, limit int) ([]workflow.Message, error) {
	sess, err := st.getSession(ctx, sessionID)
	if err == ErrSessionNotFound || err == ErrSessionExpired {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != "" && userID != "" && sess.UserID != userID {
		// Do not leak another user's conversation.
		return nil, nil
	}

	history := sess.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// SaveMessage appends one message to the session history, creating the
// session on first write. History is capped at the most recent entries.
func (st *Store) SaveMessage(ctx context.Context, userID, sessionID, role, content string) error {
	sess, err := st.getSession(ctx, sessionID)
	switch err {
	case nil:
	case ErrSessionNotFound, ErrSessionExpired:
		sess = st.newSession(sessionID, userID)
	default:
		return err
	}

	sess.History = append(sess.History, workflow.Message{Role: role, Content: content})
	if len(sess.History) > maxHistory {
		sess.History = sess.History[len(sess.History)-maxHistory:]
	}
	sess.UpdatedAt = time.Now()
	sess.ExpiresAt = time.Now().Add(st.ttl)

	return st.saveSession(ctx, sess)
}

// Checkpoint persists the turn state snapshot under the session's checkpoint
// slot. Each write overwrites the previous snapshot.
func (st *Store) Checkpoint(ctx context.Context, sessionID string, s *workflow.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return st.client.Set(ctx, checkpointKey(sessionID), data, st.ttl).Err()
}

// LoadCheckpoint returns the last persisted snapshot for a session, or nil
// when none exists.
func (st *Store) LoadCheckpoint(ctx context.Context, sessionID string) (*workflow.State, error) {
	data, err := st.client.Get(ctx, checkpointKey(sessionID)).Bytes()
	if err == redis.Nil {
		metrics.CheckpointLoads.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		metrics.CheckpointLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state workflow.State
	if err := json.Unmarshal(data, &state); err != nil {
		metrics.CheckpointLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	metrics.CheckpointLoads.WithLabelValues("ok").Inc()
	return &state, nil
}

// DeleteSession removes a session and its checkpoint.
func (st *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := st.client.Del(ctx, sessionKey(sessionID), checkpointKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	st.mu.Lock()
	delete(st.localCache, sessionID)
	delete(st.cacheAccess, sessionID)
	metrics.SessionCacheSize.Set(float64(len(st.localCache)))
	st.mu.Unlock()

	st.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// CleanupExpired removes sessions past their expiration.
func (st *Store) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := st.client.Keys(ctx, "session:*").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	cleaned := 0
	for _, key := range keys {
		data, err := st.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if sess.IsExpired() {
			if err := st.DeleteSession(ctx, sess.ID); err == nil {
				cleaned++
			}
		}
	}

	st.logger.Info("Cleaned up expired sessions", zap.Int("count", cleaned))
	return cleaned, nil
}

// RedisWrapper exposes the wrapped client for health checks.
func (st *Store) RedisWrapper() *circuitbreaker.RedisWrapper {
	return st.client
}

// Close closes the backing Redis connection.
func (st *Store) Close() error {
	return st.client.Close()
}

func (st *Store) newSession(sessionID, userID string) *Session {
	now := time.Now()
	metrics.SessionsCreated.Inc()
	return &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(st.ttl),
		History:   make([]workflow.Message, 0),
	}
}

func (st *Store) getSession(ctx context.Context, sessionID string) (*Session, error) {
	st.mu.RLock()
	if sess, ok := st.localCache[sessionID]; ok {
		st.mu.RUnlock()
		metrics.SessionCacheHits.Inc()
		if sess.IsExpired() {
			_ = st.DeleteSession(ctx, sessionID)
			return nil, ErrSessionExpired
		}
		st.mu.Lock()
		st.cacheAccess[sessionID] = time.Now()
		st.mu.Unlock()
		return sess, nil
	}
	st.mu.RUnlock()
	metrics.SessionCacheMisses.Inc()

	data, err := st.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.IsExpired() {
		_ = st.DeleteSession(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	st.cache(&sess)
	return &sess, nil
}

func (st *Store) saveSession(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = st.ttl
	}
	if err := st.client.Set(ctx, sessionKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	st.cache(sess)
	return nil
}

func (st *Store) cache(sess *Session) {
	st.mu.Lock()
	st.localCache[sess.ID] = sess
	st.cacheAccess[sess.ID] = time.Now()
	st.evictIfFull()
	metrics.SessionCacheSize.Set(float64(len(st.localCache)))
	st.mu.Unlock()
}

// evictIfFull drops the least recently used half of the cache once the cap is
// exceeded. Called with the write lock held.
func (st *Store) evictIfFull() {
	if len(st.localCache) <= st.maxSessions {
		return
	}

	type accessEntry struct {
		id   string
		time time.Time
	}
	entries := make([]accessEntry, 0, len(st.localCache))
	for id := range st.localCache {
		entries = append(entries, accessEntry{id: id, time: st.cacheAccess[id]})
	}
	for i := 0; i < len(entries)-1; i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].time.Before(entries[i].time) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}

	toRemove := st.maxSessions / 2
	for i := 0; i < toRemove && i < len(entries); i++ {
		delete(st.localCache, entries[i].id)
		delete(st.cacheAccess, entries[i].id)
		metrics.SessionCacheEvictions.Inc()
	}
}

func sessionKey(sessionID string) string    { return "session:" + sessionID }
func checkpointKey(sessionID string) string { return "checkpoint:" + sessionID }
