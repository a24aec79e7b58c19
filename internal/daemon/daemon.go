package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/hooks"
	"github.com/Aman-CERP/meilihook/internal/telemetry"
	"github.com/Aman-CERP/meilihook/internal/watcher"
)

// Daemon owns the connector, the hooks and everything that drives them.
type Daemon struct {
	cfg      Config
	logger   *slog.Logger
	conn     connector.Connector
	backend  string
	counters *telemetry.Counters
	store    *telemetry.Store
	hooks    *hooks.Listener
	hookOpts []hooks.Option

	watchRoot string
	watchOpts watcher.Options
	watcher   *watcher.ContentWatcher

	server *Server
	pid    *PIDFile
	lock   *InstanceLock
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithConnector sets the index connector and the backend name shown in status.
func WithConnector(c connector.Connector, backend string) Option {
	return func(d *Daemon) {
		d.conn = c
		d.backend = backend
	}
}

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTelemetryStore enables periodic flushing of outcome counters.
func WithTelemetryStore(s *telemetry.Store) Option {
	return func(d *Daemon) { d.store = s }
}

// WithWatcher enables the content-directory watcher on root.
func WithWatcher(root string, opts watcher.Options) Option {
	return func(d *Daemon) {
		d.watchRoot = root
		d.watchOpts = opts
	}
}

// WithHookOptions passes extra options to the hook listener.
func WithHookOptions(opts ...hooks.Option) Option {
	return func(d *Daemon) { d.hookOpts = append(d.hookOpts, opts...) }
}

// NewDaemon validates cfg and assembles a daemon. A connector is required.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   slog.Default(),
		counters: telemetry.NewCounters(),
		pid:      NewPIDFile(cfg.PIDPath),
		lock:     NewInstanceLock(cfg.LockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.conn == nil {
		return nil, fmt.Errorf("connector is required")
	}

	hookOpts := append([]hooks.Option{
		hooks.WithLogger(d.logger),
		hooks.WithRecorder(d.counters),
	}, d.hookOpts...)
	d.hooks = hooks.NewListener(d.conn, hookOpts...)

	d.server = NewServer(cfg.SocketPath, d, d.logger)
	d.server.SetTimeout(cfg.Timeout)

	return d, nil
}

// Start runs the daemon until ctx is cancelled or a component fails.
// The socket server, the optional watcher and the telemetry flusher share one
// errgroup; the first failure stops the others.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = d.lock.Release() }()

	if removed, err := d.pid.CleanStale(); err != nil {
		d.logger.Warn("stale_pid_cleanup_failed", slog.String("error", err.Error()))
	} else if removed {
		d.logger.Info("stale_pid_removed", slog.String("path", d.pid.Path()))
	}
	if err := d.pid.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pid.Remove() }()

	if d.watchRoot != "" {
		w, err := watcher.NewContentWatcher(d.watchOpts)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		d.watcher = w
	}

	d.logger.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("backend", d.backend),
		slog.String("watch_root", d.watchRoot))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.server.ListenAndServe(gctx)
	})

	if d.watcher != nil {
		dispatcher := watcher.NewDispatcher(d.watchRoot, d.hooks, d.logger)
		g.Go(func() error {
			dispatcher.Run(gctx, d.watcher.Events())
			return nil
		})
		g.Go(func() error {
			for err := range d.watcher.Errors() {
				d.logger.Warn("watcher_error", slog.String("error", err.Error()))
			}
			return nil
		})
		g.Go(func() error {
			defer func() { _ = d.watcher.Stop() }()
			return d.watcher.Start(gctx, d.watchRoot)
		})
	}

	if d.store != nil {
		g.Go(func() error {
			d.flushLoop(gctx)
			return nil
		})
	}

	err := g.Wait()
	d.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (d *Daemon) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := d.counters.Flush(d.store, now); err != nil {
				d.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown flushes telemetry and closes the connector.
func (d *Daemon) shutdown() {
	if d.store != nil {
		if err := d.counters.Flush(d.store, time.Now()); err != nil {
			d.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
		}
	}
	if err := d.conn.Close(); err != nil {
		d.logger.Warn("connector_close_failed", slog.String("error", err.Error()))
	}
	d.logger.Info("daemon_stopped")
}

// AfterCreate implements RequestHandler.
func (d *Daemon) AfterCreate(ctx context.Context, collection string, e entry.Entry) {
	d.hooks.AfterCreate(ctx, collection, e)
}

// AfterUpdate implements RequestHandler.
func (d *Daemon) AfterUpdate(ctx context.Context, collection string, e entry.Entry) {
	d.hooks.AfterUpdate(ctx, collection, e)
}

// AfterDelete implements RequestHandler.
func (d *Daemon) AfterDelete(ctx context.Context, collection string, records entry.Records) {
	d.hooks.AfterDelete(ctx, collection, records)
}

// Status implements RequestHandler.
func (d *Daemon) Status() StatusResult {
	status := StatusResult{
		Backend:  d.backend,
		Outcomes: d.counters.Snapshot(),
	}
	if d.watcher != nil {
		status.Watcher = &WatcherStatus{
			Root:           d.watcher.RootPath(),
			Mode:           d.watcher.Mode(),
			Running:        d.watcher.Running(),
			DroppedBatches: d.watcher.DroppedBatches(),
		}
	}
	return status
}

// Counters exposes the outcome counters.
func (d *Daemon) Counters() *telemetry.Counters {
	return d.counters
}
