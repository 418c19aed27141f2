package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"ctpull/pkg/post"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctpull_records_stored_total",
		Help: "Records written to a sink",
	}, []string{"sink"})

	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctpull_records_skipped_total",
		Help: "Records skipped because their post id was already stored",
	}, []string{"sink"})
)

// Sink persists collected records
type Sink interface {
	// Append stores records and reports how many were written and how many
	// were skipped as already stored
	Append(records []post.Payload) (written, skipped int, err error)
	// IsStored reports whether a post id is already in the sink
	IsStored(id string) bool
	// Count returns the number of stored records
	Count() int
	Path() string
	Close() error
}

// IsSQLitePath reports whether path names a SQLite database
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Open picks the sink by file extension: SQLite for .db, .sqlite and
// .sqlite3, NDJSON for everything else
func Open(path string, dedupe bool) (Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	if IsSQLitePath(path) {
		return NewSQLiteSink(path, dedupe)
	}
	return NewNDJSONSink(path, dedupe)
}

// ReadAll loads every record stored at path
func ReadAll(path string) ([]post.Payload, error) {
	if IsSQLitePath(path) {
		s, err := NewSQLiteSink(path, true)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Records()
	}
	return ReadNDJSON(path)
}
