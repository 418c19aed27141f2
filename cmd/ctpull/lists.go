package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ctpull/pkg/crowdtangle"
	"ctpull/pkg/logger"
	"ctpull/pkg/retry"
	"ctpull/pkg/ui"
)

var listsProfile string

// listsCmd represents the lists command
var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show the lists and saved searches of the dashboard",
	Long: `Show the lists, saved searches and saved post lists that the API token's
dashboard can see. The IDs are what 'ctpull collect --lists' expects.`,
	Args: cobra.NoArgs,
	RunE: runLists,
}

func init() {
	rootCmd.AddCommand(listsCmd)
	listsCmd.Flags().StringVarP(&listsProfile, "profile", "p", "", "stored token profile to use")
}

func runLists(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"profile": listsProfile})
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithField("command", "lists")

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client := crowdtangle.NewClient(cfg.API, log)

	rc := retry.DefaultConfig()
	rc.Logger = log
	lists, err := retry.DoWithResult(ctx, rc, func(ctx context.Context) ([]crowdtangle.List, error) {
		return client.FetchLists(ctx, token)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch lists: %w", err)
	}

	if len(lists) == 0 {
		ui.PrintWarning("The dashboard has no lists")
		return nil
	}

	w := tabwriter.NewWriter(ui.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE")
	for _, l := range lists {
		fmt.Fprintf(w, "%d\t%s\t%s\n", l.ID, l.Type, l.Title)
	}
	return w.Flush()
}
