package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ctpull/pkg/auth"
	"ctpull/pkg/config"
	"ctpull/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ctpull configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CTPULL_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'ctpull.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.
The API token is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# ctpull configuration file
#
# Every option can also be set with an environment variable prefixed with
# CTPULL_, for example CTPULL_API_TOKEN or CTPULL_MAX_CALLS.

api:
  # Dashboard API token. Prefer 'ctpull auth login' over storing it here.
  token: ""
  # Stored token profile used when token is empty
  profile: "default"
  base_url: "https://api.crowdtangle.com"
  timeout: 30s

query:
  # Lists to collect from; see 'ctpull lists'
  list_ids: []
  # YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS
  start_date: ""
  end_date: ""
  # Posts per page, 1-100
  count: 100
  # date, interaction_rate, overperforming, total_interactions, underperforming
  sort_by: "date"
  include_history: true
  # episode, extra_clip, link, live_video, live_video_complete,
  # live_video_scheduled, native_video, photo, status, trailer, video, vine, youtube
  types: []
  search_term: ""
  min_interactions: 0

collector:
  # Accepted pages per run
  max_calls: 100
  # Consecutive failed or empty attempts before giving up
  max_retries: 10
  # Wait before every request
  courtesy_delay: 500ms
  backoff:
    # linear, exponential or constant
    strategy: "linear"
    base_delay: 5s
    increment: 5s
    # 0 leaves the delay uncapped
    max_delay: 0s
    multiplier: 2.0

output:
  # .ndjson writes one JSON object per line; .db, .sqlite or .sqlite3 uses SQLite
  path: "posts.ndjson"
  # Skip posts whose id is already in the output
  dedupe: true
  # Save the next-page locator after every page so --resume can continue
  checkpoint: true

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # Log to this file instead of the console
  file: ""
  json: false

metrics:
  # Serve Prometheus metrics on this address, e.g. ":9090"; empty disables
  addr: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "ctpull.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create config directory", err.Error())
			os.Exit(1)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'ctpull auth login' to store your API token")
	fmt.Println("2. Run 'ctpull lists' and put the list IDs into query.list_ids")
	fmt.Println("3. Run 'ctpull config validate' to check the file")
	fmt.Println("4. Start collecting with 'ctpull collect'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	if displayCfg.API.Token != "" {
		displayCfg.API.Token = auth.MaskToken(displayCfg.API.Token)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (CTPULL_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched in the default locations)")
	}
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings []string
	if cfg.API.Token == "" {
		warnings = append(warnings, "no API token configured; a stored profile token will be used")
	}
	if len(cfg.Query.ListIDs) == 0 {
		warnings = append(warnings, "query.list_ids is empty; every list of the dashboard is searched")
	}
	if cfg.Query.StartDate == "" {
		warnings = append(warnings, "query.start_date is empty; the API defaults apply")
	}

	if dir := filepath.Dir(cfg.Output.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Cannot create output directory", err.Error())
			os.Exit(1)
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			ui.PrintError("Cannot create log directory", err.Error())
			os.Exit(1)
		}
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	ui.PrintSuccess("Configuration is valid")
}
