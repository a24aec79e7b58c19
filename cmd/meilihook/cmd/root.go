// Package cmd provides the CLI commands for meilihook.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/config"
	"github.com/Aman-CERP/meilihook/internal/logging"
	"github.com/Aman-CERP/meilihook/internal/profiling"
	"github.com/Aman-CERP/meilihook/pkg/version"
)

// Global flags.
var (
	debugMode  bool
	configFile string
	projectDir string

	profileOpts    profiling.Options
	profile        *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the meilihook CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meilihook",
		Short: "Forward content lifecycle events into a search index",
		Long: `meilihook keeps a search index in step with a content store.

Records created or updated are added to the index unless their published
field is present and falsy; deleted records are removed. Index failures are
logged and never fail the content write.

Hooks arrive from the CLI, from a host over the daemon's Unix socket, or from
a watched directory of <collection>/<id>.json files.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("meilihook version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.meilihook/logs/")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Use this config file instead of the user and project files")
	cmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "Project directory containing .meilihook.yaml")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "trace", "", "Write an execution trace to this file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newHookCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging installs the default logger and starts any
// requested profiles. Without --debug, CLI commands log warnings and above
// to stderr.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		slog.SetDefault(logging.NewLogger(os.Stderr, "warn"))
	} else {
		cleanup, err := logging.SetupDefault(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		session, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profile = session
	}
	return nil
}

// stopProfilingAndLogging flushes profiles, then closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profile.Stop()
	profile = nil

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load(projectDir)
}
