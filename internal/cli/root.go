package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// skipInit marks commands that must run without a loaded configuration.
const skipInit = "skip-init"

var (
	configPath string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ptsync",
	Short: "Synchronize Paperless documents with Google Tasks",
	Long: `ptsync keeps Paperless-ngx documents and Google Tasks in step.

Without a subcommand it runs the server: the Paperless webhook receiver,
the status page and the periodic reconciler that carries completed tasks
back to Paperless.`,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
	RunE:              runServe,
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipInit: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ptsync %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json or config.yaml (default $CONFIG_PATH, then $PTSYNC_HOME/config.json)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json or text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (default $LOG_LEVEL, then info)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if Cleanup != nil {
			_ = Cleanup()
		}
	}()
	return rootCmd.Execute()
}

func initialize(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(logFormat, logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cmd.Annotations[skipInit] != "" || Initialize == nil || isCompletionRequest(cmd) {
		return nil
	}
	if err := Initialize(resolveConfigPath(), logger); err != nil {
		return fmt.Errorf("initializing ptsync: %w", err)
	}
	Initialize = nil
	return nil
}

// isCompletionRequest reports whether cmd belongs to cobra's completion
// machinery (the completion script generators or the hidden __complete
// command), which must not create a default config file.
func isCompletionRequest(cmd *cobra.Command) bool {
	if cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd {
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "completion" && c.Parent() == rootCmd {
			return true
		}
	}
	return false
}

// resolveConfigPath returns the --config flag, then $CONFIG_PATH, then
// config.json in $PTSYNC_HOME or the working directory.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	base := os.Getenv("PTSYNC_HOME")
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, "config.json")
}

func newLogger(format, level string) (*slog.Logger, error) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (use json or text)", format)
	}
}
