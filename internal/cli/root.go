package cli

import (
	"log/slog"
	"os"

	"github.com/me/kosched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking KOSCHED_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("KOSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the kosched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kosched",
		Short: "kosched runs and inspects kernel scheduler scenarios",
		Long:  "kosched executes scheduling scenarios against a preemptive single-CPU kernel model and serves the recorded traces for inspection.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "kosched server URL (or KOSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newShowCmd(),
		newTraceCmd(),
		newDeleteCmd(),
		newServeCmd(),
	)

	return root
}
