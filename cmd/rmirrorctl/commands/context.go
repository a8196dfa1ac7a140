package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/internal/cli/credentials"
	"github.com/gottino/rmirror-cloud/internal/cli/output"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage stored server contexts.

A context holds the server URL and credentials for one rmirror server.
Multiple contexts let you switch between servers.

Examples:
  rmirrorctl context list
  rmirrorctl context use staging
  rmirrorctl context current
  rmirrorctl context delete old-server`,
}

func init() {
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextUseCmd)
	contextCmd.AddCommand(contextCurrentCmd)
	contextCmd.AddCommand(contextDeleteCmd)
}

// contextRow is the list entry shown for one stored context.
type contextRow struct {
	Name      string `json:"name"`
	ServerURL string `json:"server_url"`
	Email     string `json:"email,omitempty"`
	Current   bool   `json:"current"`
}

type contextList []contextRow

func (cl contextList) Headers() []string {
	return []string{"CURRENT", "NAME", "SERVER", "EMAIL"}
}

func (cl contextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		marker := ""
		if c.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, c.Name, c.ServerURL, cmdutil.EmptyOr(c.Email, "-")})
	}
	return rows
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}

		current := store.GetCurrentContextName()
		var list contextList
		for _, name := range store.ListContexts() {
			ctx, err := store.GetContext(name)
			if err != nil {
				continue
			}
			list = append(list, contextRow{
				Name:      name,
				ServerURL: ctx.ServerURL,
				Email:     ctx.Email,
				Current:   name == current,
			})
		}

		return cmdutil.PrintOutput(os.Stdout, list, len(list) == 0,
			"No contexts stored. Run 'rmirrorctl login' first.", list)
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		if err := store.UseContext(args[0]); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Switched to context %q", args[0]))
		return nil
	},
}

var contextCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}

		name := store.GetCurrentContextName()
		ctx, err := store.GetCurrentContext()
		if err != nil {
			return fmt.Errorf("no current context. Run 'rmirrorctl login' first")
		}

		row := contextRow{Name: name, ServerURL: ctx.ServerURL, Email: ctx.Email, Current: true}
		format, err := cmdutil.GetOutputFormatParsed()
		if err != nil {
			return err
		}
		if format != output.FormatTable {
			return cmdutil.PrintResource(os.Stdout, row, contextList{row})
		}

		return output.SimpleTable(os.Stdout, [][2]string{
			{"Name", name},
			{"Server", ctx.ServerURL},
			{"Email", cmdutil.EmptyOr(ctx.Email, "-")},
			{"Token expires", ctx.ExpiresAt.Local().Format("2006-01-02 15:04:05")},
		})
	},
}

var contextDeleteForce bool

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation("context", args[0], contextDeleteForce, func() error {
			return store.DeleteContext(args[0])
		})
	},
}

func init() {
	contextDeleteCmd.Flags().BoolVar(&contextDeleteForce, "force", false, "Skip confirmation prompt")
}
