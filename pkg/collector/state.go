package collector

import (
	"errors"
	"fmt"
	"time"

	"ctpull/pkg/crowdtangle"
	"ctpull/pkg/post"
)

// StopReason says why a collection ended
type StopReason string

const (
	// StopExhausted means the API reported no further pages
	StopExhausted StopReason = "exhausted"
	// StopMaxCalls means the call budget was spent while pages remained
	StopMaxCalls StopReason = "max_calls"
	// StopRetriesExhausted means too many consecutive failed or empty attempts
	StopRetriesExhausted StopReason = "retries_exhausted"
	// StopCancelled means the context ended the run
	StopCancelled StopReason = "cancelled"
)

// Request describes one collection run
type Request struct {
	Query crowdtangle.Query
	// MaxCalls bounds the number of accepted non-empty pages
	MaxCalls int
	// ResumeLocator continues a previous run from its next-page locator
	ResumeLocator string
}

// NewRequest builds the standard request: 100 posts per page, newest first,
// with interaction history
func NewRequest(listIDs []string, start, end string, maxCalls int, token string) Request {
	return Request{
		Query: crowdtangle.Query{
			Token:          token,
			ListIDs:        listIDs,
			StartDate:      start,
			EndDate:        end,
			Count:          crowdtangle.DefaultCount,
			SortBy:         crowdtangle.SortByDate,
			IncludeHistory: true,
		},
		MaxCalls: maxCalls,
	}
}

// Validate checks the request before any network call
func (r Request) Validate() error {
	var errs []error
	if err := r.Query.Validate(); err != nil {
		errs = append(errs, err)
	}
	if r.MaxCalls < 1 {
		errs = append(errs, fmt.Errorf("max calls must be at least 1, got %d", r.MaxCalls))
	}
	return errors.Join(errs...)
}

// State is the mutable loop state of one Collect call
type State struct {
	IsFirstCall bool
	HasMore     bool
	// Retries counts consecutive failed or empty attempts
	Retries int
	// Calls counts accepted non-empty pages
	Calls int
	// Attempts counts every fetch, successful or not
	Attempts int
	Locator  string
	Records  []post.Payload
}

func newState(req Request) *State {
	if req.ResumeLocator != "" {
		return &State{HasMore: true, Locator: req.ResumeLocator}
	}
	return &State{IsFirstCall: true}
}

// Result is what a Collect call hands back
type Result struct {
	Records    []post.Payload
	Calls      int
	Attempts   int
	StopReason StopReason
	// HasMore and NextLocator describe where a later run could resume
	HasMore     bool
	NextLocator string
}

func (s *State) result(reason StopReason) *Result {
	r := &Result{
		Records:    s.Records,
		Calls:      s.Calls,
		Attempts:   s.Attempts,
		StopReason: reason,
		HasMore:    s.HasMore,
	}
	if s.HasMore {
		r.NextLocator = s.Locator
	}
	return r
}

// PageEvent describes one accepted page
type PageEvent struct {
	Call    int
	Records int
	Total   int
	// Newest and Oldest are the date span of the page; zero when unknown
	Newest  time.Time
	Oldest  time.Time
	Locator string
	HasMore bool
	// Posts are the records of the page, shared with the result
	Posts []post.Payload
}

// RetryEvent describes one attempt that counted against the retry budget
type RetryEvent struct {
	Attempt int
	// Outcome is "empty" or "error"
	Outcome    string
	Err        error
	Retries    int
	MaxRetries int
	// Delay is the backoff before the next attempt; zero when Exhausted
	Delay     time.Duration
	Exhausted bool
}

func newPageEvent(s *State, page *crowdtangle.Page) PageEvent {
	ev := PageEvent{
		Call:    s.Calls,
		Records: len(page.Records),
		Total:   len(s.Records),
		Locator: s.Locator,
		HasMore: s.HasMore,
		Posts:   page.Records,
	}
	for _, p := range page.Records {
		ts, ok, err := post.NewRecord(p).Timestamp()
		if err != nil || !ok {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		if ev.Newest.IsZero() || t.After(ev.Newest) {
			ev.Newest = t
		}
		if ev.Oldest.IsZero() || t.Before(ev.Oldest) {
			ev.Oldest = t
		}
	}
	return ev
}
