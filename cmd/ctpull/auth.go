package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctpull/pkg/auth"
	"ctpull/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage CrowdTangle API tokens",
	Long: `Manage stored CrowdTangle API tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The CTPULL_API_TOKEN environment variable (read only)

Each token is stored under a profile name so several dashboards can be used.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store an API token",
	Example: `  # Store the token of your main dashboard
  ctpull auth login

  # Store a second dashboard's token
  ctpull auth login elections`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored API token",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	profile := profileArg(args)
	reader := bufio.NewReader(os.Stdin)

	auth.ShowTokenGuide()

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("Profile '%s' already has a token. Replace it? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("API token (hidden): ")
	token, err := readPassword(reader)
	if err != nil {
		ui.PrintError("Failed to read token", err.Error())
		os.Exit(1)
	}
	if token == "" {
		ui.PrintError("Token is required")
		os.Exit(1)
	}

	fmt.Print("Dashboard name (optional): ")
	dashboard, _ := reader.ReadString('\n')

	account := &auth.Account{
		Profile:      profile,
		Token:        token,
		Dashboard:    strings.TrimSpace(dashboard),
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store token", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Token stored for profile '%s' (%s)", profile, auth.MaskToken(token)))
	if profile != auth.DefaultProfile {
		fmt.Printf("\nUse it with:\n  ctpull collect --profile %s --lists <ids>\n", profile)
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	profile := profileArg(args)
	if err := manager.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No token stored for profile", profile)
			return
		}
		ui.PrintError("Failed to remove token", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Token removed: " + profile)
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list profiles", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'ctpull auth login' to add one")
		return
	}

	ui.PrintHighlight("Stored Profiles")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Profile: %s\n", i+1, sanitized.Profile)
		fmt.Printf("   Token: %s\n", sanitized.Token)
		if sanitized.Dashboard != "" {
			fmt.Printf("   Dashboard: %s\n", sanitized.Dashboard)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
