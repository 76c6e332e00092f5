package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	ledgerMu sync.Mutex // serialises ledger writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS generation_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generation_events_user ON generation_events(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetVisitor retrieves a visitor by user ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, userID string) (*domain.Visitor, error) {
	query := `
		SELECT user_id, display_name, active, last_seen_at, created_at, updated_at
		FROM visitors WHERE user_id = ?`

	v, err := scanVisitor(s.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (*domain.Visitor, error) {
	var v domain.Visitor
	var active int
	var lastSeen, createdAt, updatedAt int64
	if err := row.Scan(&v.UserID, &v.DisplayName, &active, &lastSeen, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	v.Active = active != 0
	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := `
	INSERT INTO visitors (user_id, display_name, active, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		display_name = excluded.display_name,
		active = excluded.active,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return shared.WithSQLiteRetry(ctx, "upsert visitor", shared.DefaultRetryPolicy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			v.UserID, v.DisplayName, boolToInt(v.Active),
			v.LastSeenAt.Unix(), v.CreatedAt.Unix(), v.UpdatedAt.Unix(),
		)
		return err
	})
}

// Touch marks the visitor active and updates last_seen_at.
func (s *SQLiteStore) Touch(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET active = 1, last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("touch visitor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("Touch affected 0 rows", "user_id", userID)
	}
	return nil
}

// MarkInactive clears the active flag for a visitor.
func (s *SQLiteStore) MarkInactive(ctx context.Context, userID string) error {
	return shared.WithSQLiteRetry(ctx, "mark visitor inactive", shared.DefaultRetryPolicy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE visitors SET active = 0, updated_at = ? WHERE user_id = ?`,
			time.Now().Unix(), userID)
		return err
	})
}

// GetIdleVisitors returns active visitors idle for longer than ttl.
func (s *SQLiteStore) GetIdleVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT user_id, display_name, active, last_seen_at, created_at, updated_at
		FROM visitors WHERE active = 1 AND last_seen_at < ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle visitors: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close idle visitor rows", "error", closeErr)
		}
	}()

	var visitors []*domain.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idle visitor row: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle visitors: %w", err)
	}
	return visitors, nil
}

// RecordGeneration appends a generation ledger entry. A missing ID is filled in.
func (s *SQLiteStore) RecordGeneration(ctx context.Context, ev *domain.GenerationEvent) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	var errText any
	if ev.Error != "" {
		errText = ev.Error
	}

	query := `
		INSERT INTO generation_events (id, user_id, session_id, kind, status, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	return shared.WithSQLiteRetry(ctx, "record generation", shared.DefaultRetryPolicy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			ev.ID, ev.UserID, ev.SessionID, ev.Kind, ev.Status,
			ev.DurationMS, errText, ev.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// ListGenerations returns the latest ledger entries for a user, newest first.
func (s *SQLiteStore) ListGenerations(ctx context.Context, userID string, limit int) ([]*domain.GenerationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, session_id, kind, status, duration_ms, error, created_at
		FROM generation_events WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close generation rows", "error", closeErr)
		}
	}()

	var events []*domain.GenerationEvent
	for rows.Next() {
		var ev domain.GenerationEvent
		var errText sql.NullString
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.SessionID, &ev.Kind, &ev.Status,
			&ev.DurationMS, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan generation row: %w", err)
		}
		ev.Error = errText.String
		ev.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return events, nil
}

// CleanupGenerations removes ledger entries older than maxAge.
func (s *SQLiteStore) CleanupGenerations(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	threshold := time.Now().Add(-maxAge).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_events WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup generations: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Repository = (*SQLiteStore)(nil)
