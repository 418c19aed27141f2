package main

import (
	"context"
	"fmt"

	"ctpull/pkg/checkpoint"
	"ctpull/pkg/collector"
	"ctpull/pkg/logger"
	"ctpull/pkg/storage"
	"ctpull/pkg/ui"
)

// pageWriter stores every collected page and moves the checkpoint along
// with it. The checkpoint never points past a page the sink did not take.
type pageWriter struct {
	sink      storage.Sink
	cpManager *checkpoint.Manager
	cp        *checkpoint.Checkpoint
	reporter  ui.Reporter
	log       logger.Logger
	cancel    context.CancelFunc

	// stored is the locator after the last page that reached the sink.
	// It starts at the locator the run began from.
	stored string
	err    error
}

func newPageWriter(sink storage.Sink, cpManager *checkpoint.Manager, cp *checkpoint.Checkpoint,
	reporter ui.Reporter, log logger.Logger, cancel context.CancelFunc, startLocator string) *pageWriter {
	return &pageWriter{
		sink:      sink,
		cpManager: cpManager,
		cp:        cp,
		reporter:  reporter,
		log:       log,
		cancel:    cancel,
		stored:    startLocator,
	}
}

// Page is the collector progress hook
func (w *pageWriter) Page(ev collector.PageEvent) {
	if w.err != nil {
		return
	}

	written, skipped, err := w.sink.Append(ev.Posts)
	if err != nil {
		w.err = fmt.Errorf("failed to store page %d: %w", ev.Call, err)
		w.log.WithError(err).Error("failed to store page, stopping")
		w.cancel()
		return
	}
	w.log.DebugWithFields("page stored", map[string]interface{}{
		"call":    ev.Call,
		"written": written,
		"skipped": skipped,
	})
	w.stored = ev.Locator

	if w.cp != nil {
		if err := w.cpManager.UpdateProgress(w.cp, ev.Locator, ev.Records); err != nil {
			w.log.WithError(err).Warn("failed to save checkpoint")
		}
	}
	if w.reporter != nil {
		w.reporter.Page(ev)
	}
}

// Err returns the store failure that stopped the run, if any
func (w *pageWriter) Err() error {
	return w.err
}

// Finish saves where a later run should pick up. After a store failure
// that is the page that was lost, not where the collector stopped.
func (w *pageWriter) Finish(res *collector.Result) {
	if w.cp == nil || res == nil {
		return
	}

	hasMore, next := res.HasMore, res.NextLocator
	if w.err != nil {
		hasMore, next = true, w.stored
	}
	if err := w.cpManager.Finish(w.cp, hasMore, next); err != nil {
		w.log.WithError(err).Warn("failed to save checkpoint")
	}
}
