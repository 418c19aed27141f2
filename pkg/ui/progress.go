package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"ctpull/pkg/collector"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"

	barWidth   = 20
	timeLayout = "2006-01-02 15:04"
)

// Tracker prints one line per collected page
type Tracker struct {
	mu        sync.Mutex
	out       io.Writer
	maxCalls  int
	pages     int
	records   int
	retries   int
	startTime time.Time
}

// NewTracker creates a tracker for a run with the given call budget
func NewTracker(out io.Writer, maxCalls int) *Tracker {
	return &Tracker{
		out:       out,
		maxCalls:  maxCalls,
		startTime: time.Now(),
	}
}

// Page records an accepted page and prints the progress line
func (t *Tracker) Page(ev collector.PageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pages = ev.Call
	t.records = ev.Total

	line := fmt.Sprintf("%s %s +%d posts, %d total",
		Green(fmt.Sprintf("[PAGE %d/%d]", ev.Call, t.maxCalls)),
		t.bar(),
		ev.Records,
		ev.Total)
	if !ev.Newest.IsZero() {
		line += Dim(fmt.Sprintf(", %s to %s", ev.Newest.Format(timeLayout), ev.Oldest.Format(timeLayout)))
	}
	fmt.Fprintln(t.out, line)
}

// Retry prints a warning for a failed or empty attempt
func (t *Tracker) Retry(ev collector.RetryEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retries++

	what := "empty page"
	if ev.Err != nil {
		what = ev.Err.Error()
	}
	if ev.Exhausted {
		fmt.Fprintln(t.out, Red(fmt.Sprintf("[GIVING UP] %s after %d retries", what, ev.Retries)))
		return
	}
	fmt.Fprintln(t.out, Yellow(fmt.Sprintf("[RETRY %d/%d] %s, waiting %s", ev.Retries, ev.MaxRetries, what, ev.Delay)))
}

// Done prints the final summary line
func (t *Tracker) Done(res *collector.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if res == nil {
		if err != nil {
			fmt.Fprintln(t.out, Red("[FAILED] "+err.Error()))
		}
		return
	}

	summary := fmt.Sprintf("[DONE] %d posts in %d pages (%d attempts, %s): %s",
		len(res.Records), res.Calls, res.Attempts,
		time.Since(t.startTime).Round(time.Second), res.StopReason)

	switch {
	case err != nil:
		fmt.Fprintln(t.out, Yellow(summary+", interrupted"))
	case res.StopReason == collector.StopRetriesExhausted:
		fmt.Fprintln(t.out, Yellow(summary))
	default:
		fmt.Fprintln(t.out, Green(summary))
	}
	if res.HasMore {
		fmt.Fprintln(t.out, Dim("more pages remain; run again with --resume to continue"))
	}
}

// Bar returns the call budget progress bar
func (t *Tracker) Bar() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar()
}

func (t *Tracker) bar() string {
	filled := 0
	if t.maxCalls > 0 {
		filled = t.pages * barWidth / t.maxCalls
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled) + "]"
}

// Rate returns the average number of posts per minute
func (t *Tracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.records) / elapsed
}

// Retries returns how many retry events were seen
func (t *Tracker) Retries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retries
}
