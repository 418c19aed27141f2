package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctpull/pkg/collector"
	"ctpull/pkg/post"
)

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func result(n, calls int, reason collector.StopReason) *collector.Result {
	return &collector.Result{
		Records:    make([]post.Payload, n),
		Calls:      calls,
		StopReason: reason,
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		res     *collector.Result
		err     error
		title   string
		message string
		failed  bool
	}{
		{"finished", result(250, 3, collector.StopExhausted), nil, "ctpull finished", "collected 250 posts in 3 pages", false},
		{"budget", result(100, 2, collector.StopMaxCalls), nil, "ctpull paused", "more are available", false},
		{"retries", result(40, 1, collector.StopRetriesExhausted), nil, "ctpull gave up", "retries exhausted after 40 posts", true},
		{"interrupted", result(10, 1, collector.StopCancelled), context.Canceled, "ctpull interrupted", "resume to continue", true},
		{"no result", nil, errors.New("bad token"), "ctpull failed", "bad token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Describe(tt.res, tt.err)
			assert.Equal(t, tt.title, o.Title)
			assert.Contains(t, o.Message, tt.message)
			assert.Equal(t, tt.failed, o.Failed)
		})
	}
}

func TestNotifyResult(t *testing.T) {
	var buf bytes.Buffer
	sender := &recordingSender{err: errors.New("no notification daemon")}
	n := NewNotifierWithSender(sender, &buf)

	o := n.NotifyResult(result(5, 1, collector.StopExhausted), nil)

	require.Len(t, sender.titles, 1)
	assert.Equal(t, o.Title, sender.titles[0])
	assert.Equal(t, o.Message, sender.messages[0])
	assert.Contains(t, buf.String(), "ctpull finished: collected 5 posts in 1 pages")
}

func TestNotifyResultWithoutSender(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifierWithSender(nil, &buf)

	n.NotifyResult(nil, errors.New("boom"))
	assert.Contains(t, buf.String(), "ctpull failed")
}

func TestSenderFor(t *testing.T) {
	assert.NotNil(t, senderFor("linux"))
	assert.NotNil(t, senderFor("darwin"))
	assert.NotNil(t, senderFor("windows"))
	assert.Nil(t, senderFor("plan9"))
}

func TestNotificationScriptsEscapeText(t *testing.T) {
	script := appleScript(`say "hi"`, `path C:\tmp`)
	assert.Equal(t, `display notification "path C:\\tmp" with title "say \"hi\""`, script)

	toast := toastScript("a & b", "<posts>")
	assert.Contains(t, toast, "a &amp; b")
	assert.Contains(t, toast, "&lt;posts&gt;")
	assert.NotContains(t, toast, "<posts>")
}
