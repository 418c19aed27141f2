package auth

import (
	"fmt"
	"strings"
)

// ShowTokenGuide explains where a CrowdTangle API token comes from
func ShowTokenGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("CROWDTANGLE API TOKEN")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("Every CrowdTangle dashboard has its own API token. The token only")
	fmt.Println("sees the lists and saved searches of that dashboard.")
	fmt.Println()
	fmt.Println("  1. Open the dashboard at https://apps.crowdtangle.com")
	fmt.Println("  2. Click the gear icon and choose 'API Access'")
	fmt.Println("  3. Copy the token shown under 'Dashboard Token'")
	fmt.Println()
	fmt.Println("Tips:")
	fmt.Println("  - keep one profile per dashboard: ctpull auth login <profile>")
	fmt.Println("  - the token is stored in the system keyring when available and in")
	fmt.Println("    an encrypted file otherwise")
	fmt.Println("  - in CI, set " + TokenEnvVar + " instead of logging in")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}
