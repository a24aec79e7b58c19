package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/config"
	"github.com/Aman-CERP/meilihook/internal/daemon"
	"github.com/Aman-CERP/meilihook/internal/logging"
	"github.com/Aman-CERP/meilihook/internal/output"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background hook daemon",
		Long: `The daemon hosts the lifecycle hooks behind a Unix socket (JSON-RPC 2.0)
and, when watch.root is set, drives them from a content directory.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status and outcome counters

Examples:
  meilihook daemon start            # Start daemon in background
  meilihook daemon start -f         # Run in foreground
  meilihook daemon start --watch ./content
  meilihook daemon status --json
  meilihook daemon stop`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	var watchRoot string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the hook daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground, watchRoot)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	cmd.Flags().StringVar(&watchRoot, "watch", "", "Watch this content directory (overrides watch.root)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long:  `Sends SIGTERM for a graceful shutdown, then SIGKILL after 5 seconds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool, watchRoot string) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchRoot != "" {
		cfg.Watch.Root = watchRoot
	}
	dcfg := cfg.DaemonConfig()

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		return runDaemonForeground(ctx, out, cfg)
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, backgroundArgs(cfg.Watch.Root)...)
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice if it dies before the socket is up.
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w (see %s)", err, logging.DefaultLogPath())
			}
			return fmt.Errorf("daemon process exited unexpectedly (see %s)", logging.DefaultLogPath())
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bgCmd.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

// backgroundArgs re-creates this invocation's global flags for the child.
func backgroundArgs(watchRoot string) []string {
	args := []string{"daemon", "start", "--foreground", "--dir", projectDir}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	if debugMode {
		args = append(args, "--debug")
	}
	if watchRoot != "" {
		args = append(args, "--watch", watchRoot)
	}
	return args
}

func runDaemonForeground(ctx context.Context, out *output.Writer, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer cleanup()
	slog.SetDefault(logger)

	if err := runPreflight(ctx, out, cfg); err != nil {
		logger.Error("preflight_failed", slog.String("error", err.Error()))
		return err
	}

	conn, err := openConnector(cfg)
	if err != nil {
		return err
	}

	opts := []daemon.Option{
		daemon.WithConnector(conn, cfg.ConnectorConfig().Backend),
		daemon.WithLogger(logger),
		daemon.WithHookOptions(cfg.HookOptions()...),
	}

	store, err := openTelemetry(cfg)
	if err != nil {
		logger.Warn("telemetry_unavailable", slog.String("error", err.Error()))
	} else if store != nil {
		defer store.Close()
		opts = append(opts, daemon.WithTelemetryStore(store))
	}

	if cfg.Watch.Root != "" {
		opts = append(opts, daemon.WithWatcher(cfg.Watch.Root, cfg.WatcherOptions()))
	}

	d, err := daemon.NewDaemon(cfg.DaemonConfig(), opts...)
	if err != nil {
		_ = conn.Close()
		return err
	}

	out.Status("", "Starting daemon in foreground...")
	out.KeyValue("Socket", cfg.Daemon.SocketPath)
	out.KeyValue("Backend", cfg.ConnectorConfig().Backend)
	if cfg.Watch.Root != "" {
		out.KeyValue("Watching", cfg.Watch.Root)
	}
	out.KeyValue("Logs", logCfg.FilePath)
	out.Status("", "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(cfg.Daemon.PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	_ = pidFile.Remove()

	out.Success("Daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := daemon.NewClient(cfg.DaemonConfig())

	var status *daemon.StatusResult
	if client.IsRunning() {
		status, err = client.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
	}

	if jsonOutput {
		if status == nil {
			status = &daemon.StatusResult{Running: false}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	if status == nil {
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'meilihook daemon start' to start it")
		return nil
	}

	out.Header("Daemon is running")
	out.KeyValue("PID", status.PID)
	out.KeyValue("Uptime", status.Uptime)
	out.KeyValue("Backend", status.Backend)
	out.KeyValue("Socket", cfg.Daemon.SocketPath)
	if w := status.Watcher; w != nil {
		out.KeyValue("Watching", fmt.Sprintf("%s (%s, running=%t, dropped=%d)", w.Root, w.Mode, w.Running, w.DroppedBatches))
	}

	if len(status.Outcomes) > 0 {
		out.Newline()
		out.Table([]string{"COLLECTION", "OUTCOME", "COUNT"}, outcomeRows(status.Outcomes))
	}
	return nil
}

// outcomeRows flattens collection -> outcome -> count into sorted rows.
func outcomeRows(outcomes map[string]map[string]int64) [][]string {
	collections := make([]string, 0, len(outcomes))
	for c := range outcomes {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	var rows [][]string
	for _, c := range collections {
		names := make([]string, 0, len(outcomes[c]))
		for o := range outcomes[c] {
			names = append(names, o)
		}
		sort.Strings(names)
		for _, o := range names {
			rows = append(rows, []string{c, o, strconv.FormatInt(outcomes[c][o], 10)})
		}
	}
	return rows
}
