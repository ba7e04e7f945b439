package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/starford/mdmemo/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	id               TEXT PRIMARY KEY,
	position         INTEGER NOT NULL,
	title            TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	tags             TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	last_reviewed_at TEXT,
	review_count     INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'memo',
	ease_factor      REAL NOT NULL DEFAULT 2.5,
	interval_days    INTEGER NOT NULL DEFAULT 0,
	next_review_date TEXT,
	related_card_ids TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_cards_position ON cards(position);

CREATE TABLE IF NOT EXISTS activity (
	day   TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);
`

// SQLite implements Backend on a SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database with the cgo mattn driver.
func OpenSQLite(path string) (*SQLite, error) {
	return openSQL("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
}

// OpenSQLitePure opens (or creates) the database with the pure-Go modernc driver.
func OpenSQLitePure(path string) (*SQLite, error) {
	return openSQL("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}

func openSQL(driver, dsn string) (*SQLite, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Load returns all cards ordered by their stored position.
func (s *SQLite) Load(ctx context.Context) ([]models.Card, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, content, tags, created_at, updated_at, last_reviewed_at,
		       review_count, status, ease_factor, interval_days, next_review_date, related_card_ids
		FROM cards ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("storage: load cards: %w", err)
	}
	defer rows.Close()

	out := []models.Card{}
	for rows.Next() {
		var (
			c                      models.Card
			tags, related          string
			created, updated       string
			lastReviewed, nextDate sql.NullString
			status                 string
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &tags, &created, &updated, &lastReviewed,
			&c.ReviewCount, &status, &c.EaseFactor, &c.Interval, &nextDate, &related); err != nil {
			return nil, fmt.Errorf("storage: scan card: %w", err)
		}
		c.Status = models.Status(status)
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("storage: decode tags of %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(related), &c.RelatedCardIDs); err != nil {
			return nil, fmt.Errorf("storage: decode relations of %s: %w", c.ID, err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		if c.LastReviewedAt, err = parseNullTime(lastReviewed); err != nil {
			return nil, err
		}
		if c.NextReviewDate, err = parseNullTime(nextDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save replaces every stored card within one transaction.
func (s *SQLite) Save(ctx context.Context, cards []models.Card) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return fmt.Errorf("storage: clear cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, position, title, content, tags, created_at, updated_at, last_reviewed_at,
		                   review_count, status, ease_factor, interval_days, next_review_date, related_card_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare card insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cards {
		tags, _ := json.Marshal(nonNil(c.Tags))
		related, _ := json.Marshal(nonNil(c.RelatedCardIDs))
		if _, err := stmt.ExecContext(ctx,
			c.ID, i, c.Title, c.Content, string(tags),
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt), formatNullTime(c.LastReviewedAt),
			c.ReviewCount, string(c.Status), c.EaseFactor, c.Interval,
			formatNullTime(c.NextReviewDate), string(related),
		); err != nil {
			return fmt.Errorf("storage: insert card %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Record adds count to the day's total.
func (s *SQLite) Record(ctx context.Context, day string, count int) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO activity (day, count) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET count = count + excluded.count`, day, count)
	if err != nil {
		return fmt.Errorf("storage: record activity: %w", err)
	}
	return nil
}

// Activity returns every recorded day.
func (s *SQLite) Activity(ctx context.Context) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT day, count FROM activity`)
	if err != nil {
		return nil, fmt.Errorf("storage: activity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
