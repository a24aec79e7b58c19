package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/meilihook/internal/hooks"
	"github.com/Aman-CERP/meilihook/internal/output"
	"github.com/Aman-CERP/meilihook/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var forcePolling bool

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Run the hooks for changes under a content directory",
		Long: `Watch a content directory laid out <root>/<collection>/<id>.json and run
the hooks in this process, without the daemon.

New files run afterCreate, modified files afterUpdate, and deleted or renamed
files afterDelete with the file name as id. Root defaults to watch.root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			return runWatch(cmd.Context(), cmd, root, forcePolling)
		},
	}

	cmd.Flags().BoolVar(&forcePolling, "poll", false, "Poll instead of using filesystem notifications")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, root string, forcePolling bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if root == "" {
		root = cfg.Watch.Root
	}
	if root == "" {
		return fmt.Errorf("no content directory: pass one or set watch.root")
	}
	opts := cfg.WatcherOptions()
	if forcePolling {
		opts.ForcePolling = true
	}

	// Hook outcomes are worth seeing on the terminal in this mode.
	logger := slog.Default()
	if !debugMode {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	p, err := newInProcess(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	w, err := watcher.NewContentWatcher(opts)
	if err != nil {
		return err
	}

	out.Statusf("", "Watching %s (%s), press Ctrl+C to stop", root, w.Mode())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	dispatcher := watcher.NewDispatcher(root, p.listener, logger)

	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return w.Start(gctx, root)
	})
	g.Go(func() error {
		dispatcher.Run(gctx, w.Events())
		return nil
	})
	g.Go(func() error {
		for err := range w.Errors() {
			logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
		return nil
	})
	if p.store != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Daemon.FlushInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case now := <-ticker.C:
					if err := p.recorder.counters.Flush(p.store, now); err != nil {
						logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	// Errors caused by shutdown are not failures.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	out.Newline()
	for _, outcome := range []string{hooks.OutcomeIndexed, hooks.OutcomeSkippedUnpublished, hooks.OutcomeDeleted, hooks.OutcomeFailed} {
		if n := p.recorder.total[outcome]; n > 0 {
			out.KeyValue(outcome, n)
		}
	}
	return nil
}
