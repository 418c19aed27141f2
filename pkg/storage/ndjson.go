package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ctpull/pkg/post"
)

// maxLineSize bounds one NDJSON record
const maxLineSize = 16 * 1024 * 1024

// NDJSONSink appends records to a newline-delimited JSON file
type NDJSONSink struct {
	path   string
	file   *os.File
	dedupe bool
	stored map[string]bool
	count  int
	mu     sync.RWMutex
}

// NewNDJSONSink opens path for appending. With dedupe, the post ids already
// in the file are loaded so they are not written twice.
func NewNDJSONSink(path string, dedupe bool) (*NDJSONSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	s := &NDJSONSink{
		path:   path,
		dedupe: dedupe,
		stored: make(map[string]bool),
	}

	if err := s.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan existing records: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	s.file = file

	return s, nil
}

func (s *NDJSONSink) scanExisting() error {
	records, err := ReadNDJSON(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, p := range records {
		if id, ok := post.NewRecord(p).PostID(); ok {
			s.stored[id] = true
		}
	}
	s.count = len(records)
	return nil
}

// Append writes records one per line and syncs the file
func (s *NDJSONSink) Append(records []post.Payload) (written, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var ids []string
	pending := make(map[string]bool)
	for _, p := range records {
		id, hasID := post.NewRecord(p).PostID()
		if s.dedupe && hasID && (s.stored[id] || pending[id]) {
			skipped++
			continue
		}
		if err := enc.Encode(p); err != nil {
			return 0, skipped, fmt.Errorf("failed to encode record: %w", err)
		}
		if hasID {
			pending[id] = true
			ids = append(ids, id)
		}
		written++
	}

	// ids count as stored only once they are on disk
	if err := w.Flush(); err != nil {
		return 0, skipped, fmt.Errorf("failed to write records: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return 0, skipped, fmt.Errorf("failed to sync output file: %w", err)
	}
	for _, id := range ids {
		s.stored[id] = true
	}

	s.count += written
	recordsStored.WithLabelValues("ndjson").Add(float64(written))
	recordsSkipped.WithLabelValues("ndjson").Add(float64(skipped))
	return written, skipped, nil
}

// IsStored checks if a post id has already been written
func (s *NDJSONSink) IsStored(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored[id]
}

// Count returns the number of records in the file
func (s *NDJSONSink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Path returns the output file path
func (s *NDJSONSink) Path() string {
	return s.path
}

// Close closes the output file
func (s *NDJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadNDJSON decodes every non-blank line of the file at path
func ReadNDJSON(path string) ([]post.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []post.Payload
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		p, err := post.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		records = append(records, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return records, nil
}
