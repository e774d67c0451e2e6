package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

// SQLiteStore keeps records in SQLite. Expired rows are skipped on read and
// removed by DeleteExpired.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens dsn and migrates the schema.
func NewSQLiteStore(dsn string, ttl time.Duration, now func() time.Time) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to an in-memory database gets its own copy.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db, ttl: ttl, now: now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			context_id TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			user_id TEXT NOT NULL,
			app_name TEXT NOT NULL,
			status TEXT NOT NULL,
			last_error TEXT,
			state TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, contextID string) (*Record, error) {
	var (
		rec              Record
		lastError, state sql.NullString
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT context_id, handle, user_id, app_name, status, last_error, state, created_at, updated_at
		FROM sessions WHERE context_id = ? AND updated_at >= ?`,
		contextID, s.cutoff()).Scan(&rec.ContextID, &rec.Handle, &rec.UserID, &rec.AppName, &rec.Status,
		&lastError, &state, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get", err)
	}

	rec.LastError = lastError.String
	rec.CreatedAt = time.Unix(0, created)
	rec.UpdatedAt = time.Unix(0, updated)
	if state.Valid && state.String != "" {
		var st domain.State
		if err := json.Unmarshal([]byte(state.String), &st); err != nil {
			return nil, fmt.Errorf("failed to decode state for %s: %w", contextID, err)
		}
		rec.State = &st
	}
	return &rec, nil
}

// Create implements Store. An expired row under the same context is replaced.
func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	state, err := encodeState(rec.State)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("create", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE context_id = ? AND updated_at < ?`, rec.ContextID, s.cutoff()); err != nil {
		return storeErr("create", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (context_id, handle, user_id, app_name, status, last_error, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ContextID, rec.Handle, rec.UserID, rec.AppName, rec.Status, rec.LastError, state,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrExists
		}
		return storeErr("create", err)
	}
	return storeErr("create", tx.Commit())
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	state, err := encodeState(rec.State)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (context_id, handle, user_id, app_name, status, last_error, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(context_id) DO UPDATE SET
			handle = excluded.handle,
			user_id = excluded.user_id,
			app_name = excluded.app_name,
			status = excluded.status,
			last_error = excluded.last_error,
			state = excluded.state,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		rec.ContextID, rec.Handle, rec.UserID, rec.AppName, rec.Status, rec.LastError, state,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	return storeErr("put", err)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, contextID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE context_id = ?`, contextID)
	return storeErr("delete", err)
}

// DeleteExpired implements Expirer.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, s.cutoff())
	if err != nil {
		return 0, storeErr("sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("sweep", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeState(state *domain.State) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode state: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
