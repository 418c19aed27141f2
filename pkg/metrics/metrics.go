// Package metrics exposes the Prometheus endpoint for a collection run.
//
// The collectors themselves are registered with promauto by the packages
// that own the measured code:
//
//	ctpull_requests_total{endpoint,status}      crowdtangle
//	ctpull_request_duration_seconds{endpoint}   crowdtangle
//	ctpull_attempts_total{outcome}              collector
//	ctpull_pages_total                          collector
//	ctpull_records_collected_total              collector
//	ctpull_retries_total{reason}                collector
//	ctpull_retry_backoff_seconds                collector
//	ctpull_retry_exhausted_total                collector
//	ctpull_records_stored_total                 storage
//	ctpull_records_skipped_total                storage
//
// Importing those packages is enough for the series to show up on the
// handler returned here.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"ctpull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Path is where the metrics handler is mounted
	Path = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// Handler returns a mux serving /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is done, then shuts the server down.
// An empty addr disables the endpoint and Serve returns immediately.
func Serve(ctx context.Context, addr string, log logger.Logger) error {
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, log)
}

func serve(ctx context.Context, ln net.Listener, log logger.Logger) error {
	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.InfoWithFields("metrics endpoint listening", map[string]interface{}{
		"addr": ln.Addr().String(),
		"path": Path,
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WarnWithFields("metrics endpoint shutdown", map[string]interface{}{"error": err.Error()})
		return err
	}
	log.Debug("metrics endpoint stopped")
	return nil
}
