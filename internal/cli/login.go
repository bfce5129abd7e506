package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginServerURL string
	loginUsername  string
	loginPassword  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the orchestrator server",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginServerURL, "server", "s", "http://localhost:8080", "orchestrator server URL")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "admin username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "admin password")
}

// runLogin requests a long-lived token (so a watched folder can run
// unattended) and persists it alongside the server URL.
func runLogin(cmd *cobra.Command, args []string) error {
	if loginUsername == "" || loginPassword == "" {
		return newUsageError("--username and --password are required")
	}

	respBody, err := Login(loginServerURL, loginUsername, loginPassword, true)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login succeeded but no token was returned")
	}

	if _, err := SaveConfig(loginServerURL, resp.Token, ""); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Logged in as %s\n", resp.Username)
	return nil
}
