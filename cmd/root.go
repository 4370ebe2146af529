package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lhcfl/whatdidwesaybot/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool

	// logLevel is shared by every handler so config reloads can change it.
	logLevel = new(slog.LevelVar)
)

// newRootCmd builds the command tree. Each call returns a fresh tree with
// its own flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "whatdidwesay",
		Short: "Telegram bot that archives group messages and searches them",
		Long: "whatdidwesay archives text messages from Telegram groups into a local SQLite\n" +
			"full-text index and answers /q searches with links back to the original messages.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: $WHATDIDWESAY_CONFIG or "+config.DefaultConfigPath+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(versionCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("whatdidwesay", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("WHATDIDWESAY_CONFIG"); v != "" {
		return v
	}
	return config.DefaultConfigPath
}

// setupLogging installs the default slog logger. --verbose wins over the
// configured level.
func setupLogging(w io.Writer, cfg config.LogConfig) {
	applyLogLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func applyLogLevel(level string) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	logLevel.Set(parseLogLevel(level))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
