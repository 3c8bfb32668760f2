// Package history persists a journal of download attempts to SQLite.
//
// The journal is an operational record, not a cache: rows are written
// fire-and-forget after each download attempt and read back through the
// history endpoint.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies how a download attempt ended.
type Outcome string

const (
	// OutcomeCompleted means the full artifact reached the client.
	OutcomeCompleted Outcome = "completed"

	// OutcomeFailed means the attempt failed before or during streaming.
	OutcomeFailed Outcome = "failed"

	// OutcomeAborted means the client went away mid-stream.
	OutcomeAborted Outcome = "aborted"
)

// Entry is one journaled download attempt.
type Entry struct {
	ID          int64     `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
	Platform    string    `json:"platform"`
	URL         string    `json:"url"`
	Profile     string    `json:"profile,omitempty"`
	Index       int       `json:"index"`
	Filter      string    `json:"filter,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	BytesSent   int64     `json:"bytes_sent"`
	DurationMS  int64     `json:"duration_ms"`
	Client      string    `json:"client,omitempty"`
}

// Timestamps are stored as integer unix milliseconds so ordering and
// retention cutoffs never depend on driver datetime parsing.
const schema = `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		requested_at INTEGER NOT NULL,
		platform TEXT NOT NULL,
		url TEXT NOT NULL,
		profile TEXT,
		idx INTEGER,
		filter TEXT,
		outcome TEXT NOT NULL,
		detail TEXT,
		bytes_sent INTEGER,
		duration_ms INTEGER,
		client TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_downloads_requested_at ON downloads(requested_at);
	CREATE INDEX IF NOT EXISTS idx_downloads_outcome ON downloads(outcome);
`

// Journal records download attempts in a SQLite database.
type Journal struct {
	db            *sql.DB
	retentionDays int
	logger        *slog.Logger
}

// NewJournal opens the journal database, creating it if needed.
func NewJournal(path string, retentionDays int, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Journal{
		db:            db,
		retentionDays: retentionDays,
		logger:        logger,
	}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Ping verifies the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Record inserts one journal row. Runs on the download path after the
// response is under way, so failures are logged and never surfaced.
func (j *Journal) Record(e Entry) {
	if e.RequestedAt.IsZero() {
		e.RequestedAt = time.Now()
	}

	_, err := j.db.Exec(`
		INSERT INTO downloads (requested_at, platform, url, profile, idx, filter, outcome, detail, bytes_sent, duration_ms, client)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RequestedAt.UnixMilli(), e.Platform, e.URL, e.Profile, e.Index, e.Filter, e.Outcome, e.Detail, e.BytesSent, e.DurationMS, e.Client)

	if err != nil {
		j.logger.Warn("failed to journal download", "url", e.URL, "error", err)
	}
}

// Recent returns journal entries in reverse chronological order plus the
// total row count for pagination.
func (j *Journal) Recent(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count downloads: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, requested_at, platform, url, profile, idx, filter, outcome, detail, bytes_sent, duration_ms, client
		FROM downloads
		ORDER BY requested_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var requestedAt int64
		if err := rows.Scan(&e.ID, &requestedAt, &e.Platform, &e.URL, &e.Profile, &e.Index, &e.Filter,
			&e.Outcome, &e.Detail, &e.BytesSent, &e.DurationMS, &e.Client); err != nil {
			return nil, 0, fmt.Errorf("scan download: %w", err)
		}
		e.RequestedAt = time.UnixMilli(requestedAt)
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

// Stats returns the number of journaled attempts per outcome.
func (j *Journal) Stats(ctx context.Context) (map[Outcome]int64, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM downloads GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	stats := make(map[Outcome]int64)
	for rows.Next() {
		var outcome Outcome
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		stats[outcome] = count
	}

	return stats, rows.Err()
}

// Cleanup removes entries older than the retention period.
func (j *Journal) Cleanup(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	result, err := j.db.ExecContext(ctx, "DELETE FROM downloads WHERE requested_at < ?", cutoff.UnixMilli())
	if err != nil {
		return fmt.Errorf("delete old downloads: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		j.logger.Info("cleaned up old journal entries", "deleted", deleted, "cutoff", cutoff)
	}

	return nil
}
