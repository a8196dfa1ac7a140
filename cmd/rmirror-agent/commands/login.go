package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/internal/cli/prompt"
	"github.com/gottino/rmirror-cloud/pkg/agent"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with an rmirror server",
	Long: `Authenticate with an rmirror server and store a long-lived agent token.

The session credentials are exchanged for a device agent token which is
written to the state directory. The password itself is never stored.

Examples:
  # First login to a server
  rmirror-agent login --server https://rmirror.example.com --email me@example.com

  # Re-login to the stored server
  rmirror-agent login`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	tokens := agent.NewTokenStore(getStateDir())

	server := serverURL
	if server == "" {
		if stored, err := tokens.Load(); err == nil && stored.ServerURL != "" {
			server = stored.ServerURL
		}
	}
	if server == "" {
		return fmt.Errorf("no server URL specified and no saved login found\n\n" +
			"Specify the server URL:\n" +
			"  rmirror-agent login --server https://rmirror.example.com")
	}

	parsed, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
		server = parsed.String()
	}

	email := loginEmail
	if email == "" {
		email, err = prompt.InputRequired("Email")
		if err != nil {
			return err
		}
	}

	password := loginPassword
	if password == "" {
		password, err = prompt.Password("Password")
		if err != nil {
			return err
		}
	}

	fmt.Printf("Logging in to %s as %s...\n", server, email)
	stored, err := agent.Login(server, email, password, tokens)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in. Agent token valid until %s.\n", stored.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored agent token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := agent.NewTokenStore(getStateDir()).Clear(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}
