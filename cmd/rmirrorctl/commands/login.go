package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/internal/cli/credentials"
	"github.com/gottino/rmirror-cloud/internal/cli/prompt"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

var (
	loginServer   string
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with an rmirror server",
	Long: `Authenticate with an rmirror server and store credentials.

On first login, you must specify the server URL. Subsequent logins will
use the stored server URL unless overridden.

Examples:
  # First login to a server
  rmirrorctl login --server https://rmirror.example.com --email me@example.com

  # Re-login to stored server
  rmirrorctl login`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "Server URL (required on first login)")
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	// Determine server URL
	serverURLStr := loginServer
	if serverURLStr == "" {
		ctx, err := store.GetCurrentContext()
		if err != nil || ctx == nil || ctx.ServerURL == "" {
			return fmt.Errorf("no server URL specified and no saved context found\n\n" +
				"Specify server URL:\n" +
				"  rmirrorctl login --server https://rmirror.example.com")
		}
		serverURLStr = ctx.ServerURL
	}

	parsedURL, err := url.Parse(serverURLStr)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "http"
		serverURLStr = parsedURL.String()
	}

	email := loginEmail
	if email == "" {
		email, err = prompt.InputRequired("Email")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	password := loginPassword
	if password == "" {
		password, err = prompt.Password("Password")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client := apiclient.New(serverURLStr)

	fmt.Printf("Logging in to %s as %s...\n", serverURLStr, email)
	tokens, err := client.Login(email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	contextName := store.GetCurrentContextName()
	if contextName == "" {
		contextName = credentials.GenerateContextName(serverURLStr)
	}

	ctx := &credentials.Context{
		ServerURL:    serverURLStr,
		Email:        email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}

	if err := store.SetContext(contextName, ctx); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Logged in as %s (context %q)", email, contextName))
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials for the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize credential store: %w", err)
		}

		if err := store.ClearCurrentContext(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		cmdutil.PrintSuccess("Logged out")
		return nil
	},
}
