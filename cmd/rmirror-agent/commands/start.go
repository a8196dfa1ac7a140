package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/agent"
)

var (
	watchDir   string
	debounce   time.Duration
	statusAddr string
	logLevel   string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start watching the device tree",
	Long: `Start the agent: scan the watched tree once, then watch it for changes
and upload changed pages and notebook metadata to the server.

Requires a prior 'rmirror-agent login'.

Examples:
  # Watch the default xochitl tree
  rmirror-agent start

  # Watch a custom directory against a specific server
  rmirror-agent start --server https://rmirror.example.com --watch-dir /data/xochitl`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&watchDir, "watch-dir", defaultWatchDir, "Device file tree to watch")
	startCmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before uploading a changed file (default 500ms)")
	startCmd.Flags().StringVar(&statusAddr, "status-addr", "", "Local status endpoint address (default 127.0.0.1:8712)")
	startCmd.Flags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Config{Level: logLevel, Format: "text", Output: "stdout"}); err != nil {
		return err
	}

	state := getStateDir()
	server := serverURL
	if server == "" {
		stored, err := agent.NewTokenStore(state).Load()
		if err != nil {
			return err
		}
		server = stored.ServerURL
	}

	a, err := agent.New(agent.Config{
		ServerURL:  server,
		WatchDir:   watchDir,
		StateDir:   state,
		Debounce:   debounce,
		StatusAddr: statusAddr,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	logger.Info("Agent is running. Press Ctrl+C to stop.",
		"server", server,
		"watch_dir", watchDir,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	signal.Stop(sigChan)

	logger.Info("Shutdown signal received, draining queue")
	cancel()
	if err := a.Stop(30 * time.Second); err != nil {
		return err
	}
	logger.Info("Agent stopped")
	return nil
}
