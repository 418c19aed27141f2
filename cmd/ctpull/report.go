package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ctpull/pkg/report"
	"ctpull/pkg/storage"
	"ctpull/pkg/ui"
)

var (
	htmlPath   string
	reportJSON bool
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <output>",
	Short: "Summarize a collection output",
	Long: `Read an NDJSON or SQLite output and summarize it: record counts, missing
and malformed fields, the covered date span and the most frequent platforms,
post types and hashtags.

With --html the summary is also rendered as a chart page.`,
	Example: `  ctpull report posts.ndjson
  ctpull report posts.db --html report.html`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&htmlPath, "html", "", "write a chart page to this file")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the summary as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(nil); err != nil {
		return err
	}

	records, err := storage.ReadAll(args[0])
	if err != nil {
		return err
	}
	summary := report.Summarize(records)

	if reportJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(summary)
	}

	if htmlPath == "" {
		return nil
	}

	f, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", htmlPath, err)
	}
	defer f.Close()

	if err := report.RenderHTML(f, summary); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	ui.PrintSuccess("Chart page written to " + htmlPath)
	return nil
}

func printSummary(s *report.Summary) {
	ui.PrintInfo("Records", fmt.Sprintf("%d", s.Records))
	ui.PrintInfo("Accounts", fmt.Sprintf("%d", s.Accounts))
	if !s.Earliest.IsZero() {
		ui.PrintInfo("Earliest", s.Earliest.Format("2006-01-02 15:04:05"))
		ui.PrintInfo("Latest", s.Latest.Format("2006-01-02 15:04:05"))
	}

	if !s.Valid() {
		ui.PrintWarning("Problems found")
	}
	if s.MissingIDs > 0 {
		ui.PrintWarning("Records without an ID", s.MissingIDs)
	}
	if s.Duplicates > 0 {
		ui.PrintWarning("Duplicate IDs", s.Duplicates)
	}
	if s.MissingDates > 0 {
		ui.PrintWarning("Records without a date", s.MissingDates)
	}
	if s.MalformedDates > 0 {
		ui.PrintWarning("Malformed dates", s.MalformedDates)
	}

	printCounts("Platforms", s.Platforms)
	printCounts("Post types", s.Types)
	printCounts("Top hashtags", s.TopHashtags)
}

func printCounts(title string, counts []report.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(ui.Out)
	ui.PrintHighlight(title)
	for _, c := range counts {
		fmt.Fprintf(ui.Out, "  %-24s %d\n", c.Key, c.N)
	}
}
