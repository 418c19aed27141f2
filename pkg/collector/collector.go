package collector

import (
	"context"
	"time"

	"ctpull/pkg/config"
	"ctpull/pkg/crowdtangle"
	"ctpull/pkg/errors"
	"ctpull/pkg/logger"
	"ctpull/pkg/retry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctpull_attempts_total",
		Help: "Page fetch attempts by outcome",
	}, []string{"outcome"})

	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctpull_pages_total",
		Help: "Accepted non-empty pages",
	})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctpull_records_collected_total",
		Help: "Post records collected",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctpull_retries_total",
		Help: "Retries by reason",
	}, []string{"reason"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctpull_retry_backoff_seconds",
		Help:    "Backoff waited before a retry",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctpull_retry_exhausted_total",
		Help: "Collections stopped because the retry budget ran out",
	})
)

// DefaultCourtesyDelay is waited before every request
const DefaultCourtesyDelay = 500 * time.Millisecond

// Options configures a Collector
type Options struct {
	Policy        retry.Policy
	CourtesyDelay time.Duration
	// Sleep defaults to retry.Wait
	Sleep    SleepFunc
	Logger   logger.Logger
	Progress func(PageEvent)
	// Retry is called for every failed or empty attempt that counts
	// against the retry budget
	Retry func(RetryEvent)
}

// DefaultOptions returns the standard retry policy and courtesy delay
func DefaultOptions() Options {
	return Options{
		Policy:        retry.DefaultPolicy(),
		CourtesyDelay: DefaultCourtesyDelay,
	}
}

// OptionsFromConfig builds Options from the collector config section
func OptionsFromConfig(cfg config.CollectorConfig) Options {
	return Options{
		Policy:        retry.PolicyFromConfig(cfg),
		CourtesyDelay: cfg.CourtesyDelay,
	}
}

// Collector pages through posts sequentially, one request in flight
type Collector struct {
	fetcher       PageFetcher
	policy        retry.Policy
	courtesyDelay time.Duration
	sleep         SleepFunc
	logger        logger.Logger
	progress      func(PageEvent)
	retry         func(RetryEvent)
}

// New creates a Collector around fetcher
func New(fetcher PageFetcher, opts Options) *Collector {
	if opts.Policy.MaxRetries <= 0 {
		opts.Policy.MaxRetries = retry.DefaultMaxRetries
	}
	if opts.Policy.Backoff == nil {
		opts.Policy.Backoff = retry.DefaultLinearBackoff()
	}
	if opts.CourtesyDelay < 0 {
		opts.CourtesyDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Wait
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Collector{
		fetcher:       fetcher,
		policy:        opts.Policy,
		courtesyDelay: opts.CourtesyDelay,
		sleep:         opts.Sleep,
		logger:        opts.Logger.WithField("component", "collector"),
		progress:      opts.Progress,
		retry:         opts.Retry,
	}
}

// Collect runs the paging loop until the API has no more pages, the call
// budget is spent, the retry budget is spent or ctx is done. Transport
// errors and empty pages never surface as errors; they only shorten the
// run. The only errors are an invalid request and ctx.Err(), the latter
// returned together with the partial result.
func (c *Collector) Collect(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	state := newState(req)
	machine := retry.NewMachine(c.policy)
	log := c.logger.WithFields(map[string]interface{}{
		"lists":     req.Query.ListIDs,
		"max_calls": req.MaxCalls,
	})
	logger.LogComponentStart(log, "collector", map[string]interface{}{
		"resume":      req.ResumeLocator != "",
		"max_retries": c.policy.MaxRetries,
	})

	reason := StopExhausted
	for state.IsFirstCall || state.HasMore {
		if err := ctx.Err(); err != nil {
			return c.finish(log, state, StopCancelled), err
		}
		if err := c.sleep(ctx, c.courtesyDelay); err != nil {
			return c.finish(log, state, StopCancelled), err
		}

		page, err := c.fetch(ctx, state, req)
		state.Attempts++
		if err != nil && ctx.Err() != nil {
			return c.finish(log, state, StopCancelled), ctx.Err()
		}
		if err == nil && page == nil {
			page = &crowdtangle.Page{}
		}

		var outcome retry.Outcome
		switch {
		case err != nil:
			outcome = retry.OutcomeError
			log.WarnWithFields("page fetch failed", map[string]interface{}{
				"attempt":    state.Attempts,
				"error":      err.Error(),
				"error_type": string(errors.TypeOf(err)),
			})
		case len(page.Records) == 0:
			outcome = retry.OutcomeEmpty
			if !state.IsFirstCall && page.NextLocator == "" {
				// a follow-up page with nothing left to follow is the end
				attemptsTotal.WithLabelValues(outcome.String()).Inc()
				state.HasMore = false
				state.Locator = ""
				return c.finish(log, state, StopExhausted), nil
			}
			log.WarnWithFields("zero posts returned", map[string]interface{}{
				"attempt":    state.Attempts,
				"first_call": state.IsFirstCall,
			})
		default:
			outcome = retry.OutcomeRecords
		}
		attemptsTotal.WithLabelValues(outcome.String()).Inc()

		decision := machine.Observe(outcome)
		state.Retries = decision.Retries
		if decision.State != retry.Succeeded && c.retry != nil {
			c.retry(RetryEvent{
				Attempt:    state.Attempts,
				Outcome:    outcome.String(),
				Err:        err,
				Retries:    decision.Retries,
				MaxRetries: c.policy.MaxRetries,
				Delay:      decision.Delay,
				Exhausted:  decision.State == retry.Exhausted,
			})
		}

		switch decision.State {
		case retry.Exhausted:
			retryExhaustedTotal.Inc()
			log.ErrorWithFields("retry budget exhausted, stopping", map[string]interface{}{
				"retries": decision.Retries,
			})
			return c.finish(log, state, StopRetriesExhausted), nil

		case retry.RetryWait:
			retriesTotal.WithLabelValues(outcome.String()).Inc()
			retryBackoffSeconds.Observe(decision.Delay.Seconds())
			log.InfoWithFields("waiting before retry", map[string]interface{}{
				"retries_left": c.policy.MaxRetries - decision.Retries,
				"delay":        decision.Delay,
			})
			if err := c.sleep(ctx, decision.Delay); err != nil {
				return c.finish(log, state, StopCancelled), err
			}
			machine.Resume()
			continue
		}

		machine.Resume()
		c.accept(log, state, page)

		if state.Calls >= req.MaxCalls {
			if state.HasMore {
				reason = StopMaxCalls
			}
			break
		}
	}

	return c.finish(log, state, reason), nil
}

func (c *Collector) fetch(ctx context.Context, state *State, req Request) (*crowdtangle.Page, error) {
	if state.IsFirstCall {
		return c.fetcher.FetchFirst(ctx, req.Query)
	}
	return c.fetcher.FetchNext(ctx, state.Locator)
}

// accept records a non-empty page and advances the cursor
func (c *Collector) accept(log logger.Logger, state *State, page *crowdtangle.Page) {
	if state.IsFirstCall && page.StatusCode >= 200 && page.StatusCode < 300 {
		log.Debug("successful first call")
		state.IsFirstCall = false
	}

	state.Records = append(state.Records, page.Records...)
	state.Locator = page.NextLocator
	state.HasMore = page.NextLocator != ""
	state.Calls++

	pagesTotal.Inc()
	recordsTotal.Add(float64(len(page.Records)))

	ev := newPageEvent(state, page)
	fields := map[string]interface{}{
		"call":     ev.Call,
		"records":  ev.Records,
		"total":    ev.Total,
		"has_more": ev.HasMore,
	}
	if !ev.Newest.IsZero() {
		fields["newest"] = ev.Newest
		fields["oldest"] = ev.Oldest
	}
	log.InfoWithFields("page collected", fields)

	if c.progress != nil {
		c.progress(ev)
	}
}

func (c *Collector) finish(log logger.Logger, state *State, reason StopReason) *Result {
	res := state.result(reason)
	log.InfoWithFields("collection finished", map[string]interface{}{
		"reason":   string(reason),
		"records":  len(res.Records),
		"calls":    res.Calls,
		"attempts": res.Attempts,
		"has_more": res.HasMore,
	})
	return res
}
