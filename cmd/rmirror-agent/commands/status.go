package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/pkg/agent"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running agent",
	Long: `Query the local status endpoint of a running agent.

Examples:
  rmirror-agent status
  rmirror-agent status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "status-addr", "127.0.0.1:8712", "Local status endpoint address")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print raw JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/status", statusAddr))
	if err != nil {
		return fmt.Errorf("agent is not running (no status endpoint at %s)", statusAddr)
	}
	defer func() { _ = resp.Body.Close() }()

	var status agent.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	if statusJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Connected:     %v\n", status.Connected)
	fmt.Printf("Authenticated: %v\n", status.Authenticated)
	fmt.Printf("Queue depth:   %d\n", status.QueueDepth)
	fmt.Printf("Deferred:      %d\n", status.Deferred)
	if status.LastSyncAt != nil {
		fmt.Printf("Last sync:     %s\n", status.LastSyncAt.Local().Format(time.RFC1123))
	} else {
		fmt.Println("Last sync:     never")
	}
	if status.Quota != nil {
		if status.Quota.Unlimited {
			fmt.Printf("Quota:         %d pages used (unlimited, %s tier)\n", status.Quota.Used, status.Quota.Tier)
		} else {
			fmt.Printf("Quota:         %d/%d pages used (%s tier)\n", status.Quota.Used, status.Quota.Limit, status.Quota.Tier)
		}
	}
	return nil
}
