package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sqldiag/sqldiag/internal/app"
	"github.com/sqldiag/sqldiag/internal/version"
)

var (
	cfgFile  string
	logLevel string

	filePath     string
	comparePaths []string

	sourceURL   string
	sourceQueue string
	window      time.Duration
	savePath    string

	buckets bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqldiag",
		Short: "SQL database diagnostic-event capture and analysis tool",
		Long: `sqldiag reads diagnostic metric events exported by a monitored
SQL database, either live from an event-streaming source or from a
previously saved capture file, renders them as an aggregated table,
and compares two captures to show which metrics were added or removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// One positional argument is allowed: the second path of a
		// space-separated "--compare <pathA> <pathB>" invocation.
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	cmd.Flags().StringVar(
		&cfgFile, "config", "",
		"path to config file (optional)",
	)
	cmd.Flags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)

	cmd.Flags().StringVar(
		&filePath, "file", "",
		"render a previously saved capture file",
	)
	cmd.Flags().StringSliceVar(
		&comparePaths, "compare", nil,
		"compare two saved capture files: --compare <pathA> <pathB>",
	)

	cmd.Flags().StringVar(
		&sourceURL, "url", "",
		"event source connection URL for live capture",
	)
	cmd.Flags().StringVar(
		&sourceQueue, "queue", "",
		"event source queue for live capture",
	)
	cmd.Flags().DurationVar(
		&window, "window", 0,
		"live capture window duration",
	)
	cmd.Flags().StringVar(
		&savePath, "save", "",
		"save the live capture to this path",
	)

	cmd.Flags().BoolVar(
		&buckets, "buckets", false,
		"render per-time-bucket averages instead of summary statistics",
	)

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stderr)

	cfg := app.DefaultConfig()

	if cfgFile != "" {
		loaded, err := app.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cfg = loaded
	}

	// CLI flags override config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if sourceURL != "" {
		cfg.Ingest.URL = sourceURL
	}

	if sourceQueue != "" {
		cfg.Ingest.Queue = sourceQueue
	}

	if window > 0 {
		cfg.Ingest.Window = window
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	a := app.New(log, cfg, os.Stdout)

	if len(args) > 0 && len(comparePaths) == 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}

	// Mode precedence: compare > file > live.
	switch {
	case len(comparePaths) > 0:
		// pflag binds only the token following --compare; the second
		// path of the documented space-separated form arrives as a
		// positional argument.
		paths := append([]string{}, comparePaths...)
		paths = append(paths, args...)

		if len(paths) != 2 {
			return fmt.Errorf(
				"--compare requires exactly two paths, got %d",
				len(paths),
			)
		}

		return a.RunCompare(paths[0], paths[1])
	case filePath != "":
		return a.RunFile(filePath, buckets)
	case cfg.Ingest.URL != "" || cfg.Ingest.Queue != "":
		ctx, cancel := signal.NotifyContext(
			context.Background(),
			syscall.SIGINT,
			syscall.SIGTERM,
		)
		defer cancel()

		return a.RunLive(ctx, savePath, buckets)
	default:
		_ = cmd.Help()

		return fmt.Errorf("no mode selected: use --file, --compare, or --url/--queue")
	}
}
