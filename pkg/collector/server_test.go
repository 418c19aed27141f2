package collector_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ctpull/pkg/collector"
	"ctpull/pkg/config"
	"ctpull/pkg/crowdtangle"
	"ctpull/pkg/logger"
	"ctpull/pkg/post"
	"ctpull/pkg/retry"
	"ctpull/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCrowdTangle serves numbered posts pages; page n links to page n+1
// until the last one
type mockCrowdTangle struct {
	server       *httptest.Server
	pages        int
	perPage      int
	requestCount int32

	mu sync.Mutex
	// failures are served before the next real response, one per request
	failures []int
	tokens   []string
}

func newMockCrowdTangle(t *testing.T, pages, perPage int) *mockCrowdTangle {
	m := &mockCrowdTangle{pages: pages, perPage: perPage}

	mux := http.NewServeMux()
	mux.HandleFunc("/posts", m.handlePosts)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockCrowdTangle) failNext(codes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, codes...)
}

func (m *mockCrowdTangle) requests() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

func (m *mockCrowdTangle) handlePosts(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	m.mu.Lock()
	m.tokens = append(m.tokens, r.URL.Query().Get("token"))
	var code int
	if len(m.failures) > 0 {
		code, m.failures = m.failures[0], m.failures[1:]
	}
	m.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": code, "message": http.StatusText(code)})
		return
	}

	n := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, _ = strconv.Atoi(p)
	}

	resp := crowdtangle.PostsResponse{Status: http.StatusOK}
	for i := 0; i < m.perPage; i++ {
		id := (n-1)*m.perPage + i
		resp.Result.Posts = append(resp.Result.Posts, post.Payload{
			"id":       fmt.Sprintf("post-%d", id),
			"platform": "Facebook",
			"type":     "link",
			"date":     time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC).Add(-time.Duration(id) * time.Minute).Format("2006-01-02 15:04:05"),
			"message":  fmt.Sprintf("post %d #news", id),
		})
	}
	if n < m.pages {
		resp.Result.Pagination = &crowdtangle.Pagination{
			NextPage: fmt.Sprintf("/posts?token=%s&page=%d", r.URL.Query().Get("token"), n+1),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newServerCollector(m *mockCrowdTangle, progress func(collector.PageEvent)) *collector.Collector {
	client := crowdtangle.NewClient(config.APIConfig{BaseURL: m.server.URL, Timeout: 5 * time.Second}, logger.NewNopLogger())
	return collector.New(client, collector.Options{
		Policy:   retry.Policy{MaxRetries: 3, Backoff: retry.DefaultLinearBackoff()},
		Sleep:    func(ctx context.Context, d time.Duration) error { return ctx.Err() },
		Logger:   logger.NewNopLogger(),
		Progress: progress,
	})
}

func TestCollectAgainstServer(t *testing.T) {
	m := newMockCrowdTangle(t, 3, 5)

	sink, err := storage.Open(filepath.Join(t.TempDir(), "posts.ndjson"), true)
	require.NoError(t, err)
	defer sink.Close()

	var events []collector.PageEvent
	c := newServerCollector(m, func(ev collector.PageEvent) {
		events = append(events, ev)
		_, _, err := sink.Append(ev.Posts)
		require.NoError(t, err)
	})

	res, err := c.Collect(context.Background(), collector.NewRequest([]string{"42"}, "2024-01-01", "2024-02-01", 10, "secret"))
	require.NoError(t, err)

	assert.Equal(t, collector.StopExhausted, res.StopReason)
	assert.Len(t, res.Records, 15)
	assert.Equal(t, 3, res.Calls)
	assert.Equal(t, 3, m.requests())
	assert.False(t, res.HasMore)
	require.Len(t, events, 3)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), events[0].Newest)

	assert.Equal(t, 15, sink.Count())
	stored, err := storage.ReadAll(sink.Path())
	require.NoError(t, err)
	assert.Len(t, stored, 15)

	for _, token := range m.tokens {
		assert.Equal(t, "secret", token)
	}
}

func TestCollectAgainstServerRetriesServerErrors(t *testing.T) {
	m := newMockCrowdTangle(t, 2, 3)
	m.failNext(http.StatusTooManyRequests, http.StatusBadGateway)

	c := newServerCollector(m, nil)
	res, err := c.Collect(context.Background(), collector.NewRequest([]string{"42"}, "", "", 10, "secret"))
	require.NoError(t, err)

	assert.Equal(t, collector.StopExhausted, res.StopReason)
	assert.Len(t, res.Records, 6)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, m.requests())
}

func TestCollectAgainstServerStopsAtBudgetAndResumes(t *testing.T) {
	m := newMockCrowdTangle(t, 4, 2)

	c := newServerCollector(m, nil)
	req := collector.NewRequest([]string{"42"}, "", "", 2, "secret")

	first, err := c.Collect(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, collector.StopMaxCalls, first.StopReason)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextLocator)

	req.ResumeLocator = first.NextLocator
	second, err := c.Collect(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, collector.StopExhausted, second.StopReason)

	seen := make(map[string]bool)
	for _, p := range append(first.Records, second.Records...) {
		id, ok := post.NewRecord(p).PostID()
		require.True(t, ok)
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 8)
}

func TestCollectAgainstServerGivesUpOnPersistentFailure(t *testing.T) {
	m := newMockCrowdTangle(t, 2, 3)
	m.failNext(500, 500, 500, 500, 500)

	c := newServerCollector(m, nil)
	res, err := c.Collect(context.Background(), collector.NewRequest([]string{"42"}, "", "", 10, "secret"))
	require.NoError(t, err)

	assert.Equal(t, collector.StopRetriesExhausted, res.StopReason)
	assert.Empty(t, res.Records)
	assert.Equal(t, 3, m.requests())
}
