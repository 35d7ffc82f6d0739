package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/logging"
	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var rootCmd = &cobra.Command{
	Use:           "repcoach-cli",
	Short:         "Replay recordings and inspect exercises for RepCoach",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("repcoach-cli", version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("catalog", "", "exercise catalog YAML (defaults to the built-in catalog)")
	rootCmd.PersistentFlags().String("server", "", "RepCoach server URL; when set, commands talk to the remote service")
	rootCmd.PersistentFlags().String("api-key", os.Getenv("REPCOACH_AUTH_API_KEY"), "API key for session control on the server")

	rootCmd.AddCommand(exercisesCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger logs to stderr so stdout stays free for command output and MCP stdio.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return slog.New(logging.NewHandler(os.Stderr, level, false))
}

func loadCatalog(cmd *cobra.Command) (*exercise.Catalog, error) {
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		return exercise.Load(p)
	}
	return exercise.Default()
}
