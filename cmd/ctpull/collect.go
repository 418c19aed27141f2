package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ctpull/pkg/checkpoint"
	"ctpull/pkg/collector"
	"ctpull/pkg/config"
	"ctpull/pkg/crowdtangle"
	"ctpull/pkg/logger"
	"ctpull/pkg/metrics"
	"ctpull/pkg/report"
	"ctpull/pkg/storage"
	"ctpull/pkg/ui"
	"ctpull/pkg/ui/tui"
)

var (
	// Collect command flags
	listIDs     []string
	startDate   string
	endDate     string
	maxCalls    int
	maxRetries  int
	outputPath  string
	profileName string
	searchTerm  string
	postTypes   []string
	metricsAddr string
	resumeRun   bool
	useTUI      bool
	notify      bool
)

var errRetriesExhausted = errors.New("collection stopped early: retry budget exhausted")

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect posts from CrowdTangle lists",
	Long: `Collect posts from one or more CrowdTangle lists between two dates.

Pages are requested one at a time, newest first. Each accepted page is written
to the output right away and its next-page locator is saved in a checkpoint,
so an interrupted run can continue with --resume.

The API token is taken from, in order:
  - the CTPULL_API_TOKEN environment variable or api.token in the config file
  - the stored token of the selected profile ('ctpull auth login')`,
	Example: `  # Collect January 2024 from two lists, at most 50 pages
  ctpull collect --lists 1234,5678 --start 2024-01-01 --end 2024-02-01 --max-calls 50

  # Write into SQLite instead of NDJSON
  ctpull collect --lists 1234 --output posts.db

  # Continue an interrupted run
  ctpull collect --lists 1234 --start 2024-01-01 --end 2024-02-01 --resume

  # Full-screen dashboard and a Prometheus endpoint
  ctpull collect --lists 1234 --tui --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringSliceVarP(&listIDs, "lists", "l", nil, "comma separated list IDs")
	collectCmd.Flags().StringVar(&startDate, "start", "", "earliest post date (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)")
	collectCmd.Flags().StringVar(&endDate, "end", "", "latest post date (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)")
	collectCmd.Flags().IntVar(&maxCalls, "max-calls", 0, "maximum number of accepted pages (default from config)")
	collectCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "consecutive failed or empty attempts before giving up (default from config)")
	collectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file; .db, .sqlite or .sqlite3 selects SQLite")
	collectCmd.Flags().StringVarP(&profileName, "profile", "p", "", "stored token profile to use")
	collectCmd.Flags().StringVar(&searchTerm, "search", "", "only posts matching this search term")
	collectCmd.Flags().StringSliceVar(&postTypes, "types", nil, "only these post types (e.g. photo,link,native_video)")
	collectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	collectCmd.Flags().BoolVar(&resumeRun, "resume", false, "continue from the last checkpoint of the same lists and dates")
	collectCmd.Flags().BoolVar(&useTUI, "tui", false, "show a full-screen dashboard")
	collectCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
}

func collectFlags() map[string]interface{} {
	return map[string]interface{}{
		"lists":        listIDs,
		"start":        startDate,
		"end":          endDate,
		"max-calls":    maxCalls,
		"max-retries":  maxRetries,
		"output":       outputPath,
		"profile":      profileName,
		"search":       searchTerm,
		"types":        postTypes,
		"metrics-addr": metricsAddr,
	}
}

// buildRequest turns the query section into a collection request
func buildRequest(cfg *config.Config, token string) collector.Request {
	req := collector.NewRequest(cfg.Query.ListIDs, cfg.Query.StartDate, cfg.Query.EndDate, cfg.Collector.MaxCalls, token)
	req.Query.Count = cfg.Query.Count
	req.Query.SortBy = cfg.Query.SortBy
	req.Query.IncludeHistory = cfg.Query.IncludeHistory
	req.Query.Types = cfg.Query.Types
	req.Query.SearchTerm = cfg.Query.SearchTerm
	req.Query.MinInteractions = cfg.Query.MinInteractions
	req.Query.Offset = cfg.Query.Offset
	return req
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(collectFlags())
	if err != nil {
		return err
	}

	// Console logs would tear the dashboard apart
	if useTUI && cfg.Logging.File == "" {
		logger.SetLogger(logger.NewNopLogger())
	}
	log := logger.GetLogger().WithField("command", "collect")

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}

	req := buildRequest(cfg, token)
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
			log.WithError(err).Warn("metrics endpoint failed")
		}
	}()

	// Checkpoint
	var (
		cpManager *checkpoint.Manager
		cp        *checkpoint.Checkpoint
	)
	if resumeRun && !cfg.Output.Checkpoint {
		return errors.New("--resume needs output.checkpoint enabled")
	}
	if cfg.Output.Checkpoint {
		cpManager, err = checkpoint.NewManager(checkpoint.Key(cfg.Query.ListIDs, cfg.Query.StartDate, cfg.Query.EndDate))
		if err != nil {
			return err
		}
		cpManager.SetLogger(log)

		if resumeRun {
			cp, err = cpManager.Resume(cfg.Query.ListIDs, cfg.Query.StartDate, cfg.Query.EndDate, cfg.Output.Path)
		} else {
			cp, err = cpManager.Create(cfg.Query.ListIDs, cfg.Query.StartDate, cfg.Query.EndDate, cfg.Output.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to prepare checkpoint: %w", err)
		}

		if resumeRun && cp.NextLocator != "" {
			req.ResumeLocator = cp.NextLocator
			if cp.Output != "" {
				cfg.Output.Path = cp.Output
			}
			if !useTUI {
				ui.PrintInfo("Resuming", fmt.Sprintf("%d posts from %d earlier pages", cp.Records, cp.Calls))
			}
		} else if resumeRun && !useTUI {
			ui.PrintWarning("No unfinished run found, starting from the first page")
		}
	}

	sink, err := storage.Open(cfg.Output.Path, cfg.Output.Dedupe)
	if err != nil {
		return err
	}
	closeSink := sync.OnceValue(sink.Close)
	defer closeSink()

	if !useTUI {
		ui.PrintInfo("Lists", fmt.Sprintf("%v", cfg.Query.ListIDs))
		ui.PrintInfo("Output", sink.Path())
		ui.PrintHighlight("[COLLECTING]")
	}

	// Reporting
	tracker := ui.NewTracker(ui.Out, cfg.Collector.MaxCalls)
	var (
		reporter  ui.Reporter = tracker
		dashboard *tui.TUI
	)
	if useTUI {
		dashboard = tui.NewTUI(cfg.Collector.MaxCalls, cfg.Collector.MaxRetries)
		reporter = dashboard
	}

	writer := newPageWriter(sink, cpManager, cp, reporter, log, cancel, req.ResumeLocator)
	opts := collector.OptionsFromConfig(cfg.Collector)
	opts.Logger = log
	opts.Retry = reporter.Retry
	opts.Progress = writer.Page

	client := crowdtangle.NewClient(cfg.API, log)
	c := collector.New(client, opts)

	var (
		res    *collector.Result
		runErr error
	)
	if useTUI {
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, runErr = c.Collect(ctx, req)
			dashboard.Done(res, runErr)
		}()
		if err := dashboard.Start(); err != nil {
			log.WithError(err).Error("dashboard failed")
		}
		// Quitting the dashboard stops the collection
		cancel()
		<-done
	} else {
		res, runErr = c.Collect(ctx, req)
	}
	tracker.Done(res, runErr)

	if notify {
		ui.NewNotifier().NotifyResult(res, runErr)
	}

	if res == nil {
		return runErr
	}

	writer.Finish(res)

	if err := closeSink(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := writer.Err(); err != nil {
		return err
	}

	writeSummary(cfg.Output.Path, log)

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		ui.PrintWarning("Interrupted; run again with --resume to continue")
		return nil
	case runErr != nil:
		return runErr
	case res.StopReason == collector.StopRetriesExhausted:
		return errRetriesExhausted
	}
	return nil
}

// writeSummary summarizes everything in the output, earlier runs included,
// and stores the summary next to it
func writeSummary(path string, log logger.Logger) {
	records, err := storage.ReadAll(path)
	if err != nil {
		log.WithError(err).Warn("failed to read output for summary")
		return
	}

	summary := report.Summarize(records)
	if err := summary.Save(path); err != nil {
		log.WithError(err).Warn("failed to save summary")
		return
	}

	ui.PrintInfo("Posts in output", fmt.Sprintf("%d", summary.Records))
	if !summary.Earliest.IsZero() {
		ui.PrintInfo("Date span", fmt.Sprintf("%s to %s", summary.Earliest.Format("2006-01-02 15:04"), summary.Latest.Format("2006-01-02 15:04")))
	}
	ui.PrintInfo("Summary", report.SummaryPath(path))
}
