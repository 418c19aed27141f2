package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"ctpull/pkg/auth"
	"ctpull/pkg/config"
	"ctpull/pkg/logger"
	"ctpull/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ctpull",
	Short: "Collect posts from CrowdTangle lists",
	Long: `ctpull pages through the CrowdTangle posts endpoint for one or more lists
and writes every post it receives as newline-delimited JSON or into SQLite.

Features:
  - Sequential paging with a courtesy delay between requests
  - Bounded retries with linear backoff on errors and empty pages
  - Resume from the last page locator after an interruption
  - Token storage in the system keychain
  - Collection summaries with an HTML chart page
  - Prometheus metrics`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		// JSON output stays machine readable
		if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
			return
		}
		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.ctpull.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print the logo")

	rootCmd.SetVersionTemplate(`ctpull {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the given flag overrides and
// initializes the global logger from it
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveToken returns the configured token or the stored one for the
// configured profile
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.API.Token != "" {
		return cfg.API.Token, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := cfg.API.Profile
	if profile == "" {
		profile = auth.DefaultProfile
	}

	token, err := manager.Token(profile)
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		return "", fmt.Errorf("no API token for profile %q; run 'ctpull auth login %s' or set %s", profile, profile, auth.TokenEnvVar)
	}
	return token, err
}
