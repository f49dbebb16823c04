package eventlog

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Store keeps the audit trail in a SQLite database so past runs can be
// inspected after the fact. The scraper itself never reads from it.
type Store struct {
	sql *sql.DB
}

func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
  id             INTEGER PRIMARY KEY,
  occurred_at    DATETIME NOT NULL,
  level          TEXT NOT NULL,
  event          TEXT NOT NULL,
  sms_content    TEXT,
  day            TEXT,
  date           TEXT,
  shift_start    INTEGER NOT NULL DEFAULT 0,
  shift_end      INTEGER NOT NULL DEFAULT 0,
  hours          INTEGER NOT NULL DEFAULT 0,
  retry_attempts INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(occurred_at);
    `); err != nil {
		return nil, err
	}
	return &Store{sql: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

func (s *Store) Record(ctx context.Context, ev Event) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO events(occurred_at, level, event, sms_content, day, date, shift_start, shift_end, hours, retry_attempts)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		ev.Time.UTC().Format(time.RFC3339), ev.Level, string(ev.Kind), ev.Content,
		ev.Day, ev.Date, ev.ShiftStart, ev.ShiftEnd, ev.Hours, ev.RetryAttempts)
	return err
}

// List returns events recorded at or after since, newest first, capped by
// limit when limit is positive.
func (s *Store) List(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	query := `SELECT occurred_at, level, event, sms_content, day, date, shift_start, shift_end, hours, retry_attempts
	          FROM events WHERE occurred_at >= ? ORDER BY occurred_at DESC, id DESC`
	args := []interface{}{since.UTC().Format(time.RFC3339)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			occurred string
			kind     string
		)
		if err := rows.Scan(&occurred, &ev.Level, &kind, &ev.Content, &ev.Day, &ev.Date,
			&ev.ShiftStart, &ev.ShiftEnd, &ev.Hours, &ev.RetryAttempts); err != nil {
			return nil, err
		}
		ev.Kind = Kind(kind)
		if t, err := time.Parse(time.RFC3339, occurred); err == nil {
			ev.Time = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
