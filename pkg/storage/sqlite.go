package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ctpull/pkg/post"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink stores records in a SQLite database, one row per post
type SQLiteSink struct {
	path   string
	db     *sql.DB
	dedupe bool
}

// NewSQLiteSink opens or creates the database at path
func NewSQLiteSink(path string, dedupe bool) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteSink{path: path, db: db, dedupe: dedupe}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *SQLiteSink) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS posts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id TEXT UNIQUE,
		platform TEXT,
		type TEXT,
		account_id TEXT,
		date TEXT,
		payload TEXT NOT NULL,
		collected_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_date ON posts(date);
	CREATE INDEX IF NOT EXISTS idx_posts_account ON posts(account_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// Append inserts records in one transaction. Without dedupe an existing
// post is overwritten with the newer payload.
func (s *SQLiteSink) Append(records []post.Payload) (written, skipped int, err error) {
	query := `
	INSERT INTO posts (post_id, platform, type, account_id, date, payload, collected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(post_id) DO UPDATE SET
		platform = excluded.platform,
		type = excluded.type,
		account_id = excluded.account_id,
		date = excluded.date,
		payload = excluded.payload,
		collected_at = excluded.collected_at
	`
	if s.dedupe {
		query = `
		INSERT INTO posts (post_id, platform, type, account_id, date, payload, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO NOTHING
		`
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range records {
		data, err := json.Marshal(p)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to encode record: %w", err)
		}

		rec := post.NewRecord(p)
		res, err := stmt.Exec(
			nullable(rec.PostID()),
			nullable(rec.Platform()),
			nullable(rec.PostType()),
			nullable(rec.UserID()),
			nullable(post.LookupString(p, "date")),
			string(data),
			now,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			skipped++
			continue
		}
		written++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit records: %w", err)
	}

	recordsStored.WithLabelValues("sqlite").Add(float64(written))
	recordsSkipped.WithLabelValues("sqlite").Add(float64(skipped))
	return written, skipped, nil
}

// IsStored checks if a post id is in the database
func (s *SQLiteSink) IsStored(id string) bool {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM posts WHERE post_id = ?", id).Scan(&count)
	return err == nil && count > 0
}

// Count returns the number of stored rows
func (s *SQLiteSink) Count() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Records returns every stored payload in insertion order
func (s *SQLiteSink) Records() ([]post.Payload, error) {
	rows, err := s.db.Query("SELECT payload FROM posts ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []post.Payload
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		p, err := post.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// Path returns the database path
func (s *SQLiteSink) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(v string, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}
