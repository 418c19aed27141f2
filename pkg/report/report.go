// Package report summarizes a set of collected posts and renders the
// summary as JSON or as an HTML chart page.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"ctpull/pkg/post"
)

// DayLayout formats the keys of PerDay
const DayLayout = "2006-01-02"

// Count is one bucket of a frequency table
type Count struct {
	Key string `json:"key"`
	N   int    `json:"n"`
}

// Summary describes a record set
type Summary struct {
	Records    int `json:"records"`
	MissingIDs int `json:"missing_ids"`
	Duplicates int `json:"duplicates"`
	// MissingDates counts records without a date, MalformedDates those
	// whose date cannot be parsed
	MissingDates   int       `json:"missing_dates"`
	MalformedDates int       `json:"malformed_dates"`
	Earliest       time.Time `json:"earliest,omitempty"`
	Latest         time.Time `json:"latest,omitempty"`
	Accounts       int       `json:"accounts"`
	Platforms      []Count   `json:"platforms"`
	Types          []Count   `json:"types"`
	PerDay         []Count   `json:"per_day"`
	TopHashtags    []Count   `json:"top_hashtags"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// MaxHashtags bounds TopHashtags
const MaxHashtags = 20

// Summarize builds a Summary over payloads
func Summarize(payloads []post.Payload) *Summary {
	s := &Summary{
		Records:     len(payloads),
		GeneratedAt: time.Now().UTC(),
	}

	seen := make(map[string]bool, len(payloads))
	accounts := make(map[string]bool)
	platforms := make(map[string]int)
	types := make(map[string]int)
	days := make(map[string]int)
	hashtags := make(map[string]int)

	for _, p := range payloads {
		rec := post.NewRecord(p)

		if id, ok := rec.PostID(); ok {
			if seen[id] {
				s.Duplicates++
			}
			seen[id] = true
		} else {
			s.MissingIDs++
		}

		if uid, ok := rec.UserID(); ok {
			accounts[uid] = true
		}
		if platform, ok := rec.Platform(); ok {
			platforms[platform]++
		}
		if typ, ok := rec.PostType(); ok {
			types[typ]++
		}
		for _, tag := range rec.Hashtags() {
			hashtags[tag]++
		}

		sec, ok, err := rec.Timestamp()
		switch {
		case err != nil:
			s.MalformedDates++
		case !ok:
			s.MissingDates++
		default:
			t := time.Unix(sec, 0).UTC()
			if s.Earliest.IsZero() || t.Before(s.Earliest) {
				s.Earliest = t
			}
			if t.After(s.Latest) {
				s.Latest = t
			}
			days[t.Format(DayLayout)]++
		}
	}

	s.Accounts = len(accounts)
	s.Platforms = byCount(platforms, 0)
	s.Types = byCount(types, 0)
	s.TopHashtags = byCount(hashtags, MaxHashtags)
	s.PerDay = byKey(days)
	return s
}

// Span returns the time between the oldest and newest post
func (s *Summary) Span() time.Duration {
	if s.Earliest.IsZero() {
		return 0
	}
	return s.Latest.Sub(s.Earliest)
}

// Valid reports whether every record has an id and a parseable date
func (s *Summary) Valid() bool {
	return s.MissingIDs == 0 && s.MalformedDates == 0 && s.MissingDates == 0
}

// SummaryPath returns where the summary of the output at path is stored
func SummaryPath(path string) string {
	return path + ".summary.json"
}

// Save writes the summary next to the output file
func (s *Summary) Save(outputPath string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(SummaryPath(outputPath), data, 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	return nil
}

// Load reads the summary stored next to the output file
func Load(outputPath string) (*Summary, error) {
	data, err := os.ReadFile(SummaryPath(outputPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &s, nil
}

// byCount sorts by descending count, then key; limit 0 keeps everything
func byCount(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byKey(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
