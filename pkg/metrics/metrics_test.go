package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ctpull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ctpull_metrics_test_total",
	Help: "Counter registered by the metrics tests",
})

func TestHandlerServesPrometheusFormat(t *testing.T) {
	testCounter.Inc()

	req := httptest.NewRequest(http.MethodGet, Path, nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "# HELP")
	assert.Contains(t, string(body), "# TYPE")
	assert.Contains(t, string(body), "ctpull_metrics_test_total 1")
}

func TestHandlerHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServeDisabled(t *testing.T) {
	assert.NoError(t, Serve(context.Background(), "", logger.NewNopLogger()))
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	log := logger.NewTestLogger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, log) }()

	resp, err := http.Get("http://" + ln.Addr().String() + Path)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, log.HasMessage("metrics endpoint listening"))
}
