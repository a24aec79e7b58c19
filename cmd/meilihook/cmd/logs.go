package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/logging"
	"github.com/Aman-CERP/meilihook/internal/output"
)

type logsOptions struct {
	follow     bool
	lines      int
	level      string
	filter     string
	collection string
	event      string
	noColor    bool
	logFile    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon and debug logs",
		Long: `Show the last lines of the meilihook log, or follow it like 'tail -f'.

The log file is logging.file when set, otherwise ~/.meilihook/logs/meilihook.log.`,
		Example: `  meilihook logs                      # Last 50 lines
  meilihook logs -f                   # Follow new entries
  meilihook logs --level warn         # Warnings and errors only
  meilihook logs --event hook_failed  # One event
  meilihook logs --collection article`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().StringVar(&opts.collection, "collection", "", "Only entries for this collection")
	cmd.Flags().StringVar(&opts.event, "event", "", "Only entries with this event name")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")
	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	explicit := opts.logFile
	if explicit == "" {
		if cfg, err := loadConfig(); err == nil {
			explicit = cfg.Logging.File
		}
	}
	path, err := logging.FindLogFile(explicit)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		Collection: opts.collection,
		Event:      opts.event,
		NoColor:    opts.noColor || !output.IsTTY(stdout) || output.NoColor(),
	}, stdout)

	fmt.Fprintf(stderr, "Log file: %s\n", path)

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case e := <-entries:
			fmt.Fprintln(stdout, viewer.FormatEntry(e))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}
