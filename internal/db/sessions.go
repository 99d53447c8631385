package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session modes.
const (
	ModeSend   = "send"
	ModeListen = "listen"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// Totals are the counters kept for a session.
type Totals struct {
	Containers int64
	Events     int64
	Datagrams  int64
	Bytes      int64
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID               uuid.UUID
	Mode             string
	Peer             string
	IncludeTimestamp bool
	StartedAt        time.Time
	FinishedAt       time.Time // zero while the session runs
	Totals
}

// CreateSession inserts a running session.
func (db *DB) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, mode, peer, include_timestamp, started_unix_ns)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Mode, rec.Peer, rec.IncludeTimestamp, rec.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", rec.ID, err)
	}
	return nil
}

// FinishSession stores the final totals of a session.
func (db *DB) FinishSession(ctx context.Context, id uuid.UUID, finishedAt time.Time, t Totals) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions
		 SET finished_unix_ns = ?, containers = ?, events = ?, datagrams = ?, bytes = ?
		 WHERE session_id = ?`,
		finishedAt.UnixNano(), t.Containers, t.Events, t.Datagrams, t.Bytes, id.String(),
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

const sessionColumns = `session_id, mode, peer, include_timestamp, started_unix_ns,
	finished_unix_ns, containers, events, datagrams, bytes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		rec      SessionRecord
		id       string
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(&id, &rec.Mode, &rec.Peer, &rec.IncludeTimestamp, &started,
		&finished, &rec.Containers, &rec.Events, &rec.Datagrams, &rec.Bytes)
	if err != nil {
		return rec, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("session id %q: %w", id, err)
	}
	rec.StartedAt = time.Unix(0, started)
	if finished.Valid {
		rec.FinishedAt = time.Unix(0, finished.Int64)
	}
	return rec, nil
}

// GetSession returns one session.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (SessionRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id.String())
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, err
}

// ListSessions returns every session, oldest first.
func (db *DB) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_unix_ns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
