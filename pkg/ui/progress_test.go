package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ctpull/pkg/collector"
)

func TestMain(m *testing.M) {
	SetColor(false)
	m.Run()
}

func TestTrackerPage(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, 4)

	tracker.Page(collector.PageEvent{
		Call:    2,
		Records: 100,
		Total:   200,
		Newest:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Oldest:  time.Date(2024, 1, 14, 22, 10, 0, 0, time.UTC),
	})

	out := buf.String()
	assert.Contains(t, out, "[PAGE 2/4]")
	assert.Contains(t, out, "+100 posts, 200 total")
	assert.Contains(t, out, "2024-01-15 10:30 to 2024-01-14 22:10")
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 10)+strings.Repeat(ProgressEmpty, 10)+"]", tracker.Bar())
}

func TestTrackerBarIsCapped(t *testing.T) {
	tracker := NewTracker(&bytes.Buffer{}, 2)
	tracker.Page(collector.PageEvent{Call: 5})
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 20)+"]", tracker.Bar())
}

func TestTrackerRetry(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, 4)

	tracker.Retry(collector.RetryEvent{Attempt: 1, Outcome: "empty", Retries: 1, MaxRetries: 10, Delay: 5 * time.Second})
	tracker.Retry(collector.RetryEvent{Attempt: 2, Outcome: "error", Err: errors.New("server error"), Retries: 10, MaxRetries: 10, Exhausted: true})

	out := buf.String()
	assert.Contains(t, out, "[RETRY 1/10] empty page, waiting 5s")
	assert.Contains(t, out, "[GIVING UP] server error after 10 retries")
	assert.Equal(t, 2, tracker.Retries())
}

func TestTrackerDone(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, 4)

	tracker.Done(&collector.Result{Calls: 4, Attempts: 5, StopReason: collector.StopMaxCalls, HasMore: true, NextLocator: "next"}, nil)
	out := buf.String()
	assert.Contains(t, out, "[DONE] 0 posts in 4 pages (5 attempts")
	assert.Contains(t, out, "max_calls")
	assert.Contains(t, out, "--resume")

	buf.Reset()
	tracker.Done(nil, errors.New("unauthorized"))
	assert.Contains(t, buf.String(), "[FAILED] unauthorized")

	buf.Reset()
	tracker.Done(&collector.Result{StopReason: collector.StopCancelled}, errors.New("context canceled"))
	assert.Contains(t, buf.String(), "interrupted")
}

func TestColorize(t *testing.T) {
	SetColor(true)
	defer SetColor(false)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))

	SetColor(false)
	assert.Equal(t, "ok", Green("ok"))
}

func TestPrintHelpersWriteToOut(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()

	PrintInfo("Lists", "123")
	PrintWarning("slow", "429")
	PrintError("failed")

	assert.Equal(t, "Lists: 123\nslow: 429\nfailed\n", buf.String())
}
