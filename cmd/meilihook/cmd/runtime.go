package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/meilihook/internal/config"
	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/daemon"
	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/internal/hooks"
	"github.com/Aman-CERP/meilihook/internal/output"
	"github.com/Aman-CERP/meilihook/internal/preflight"
	"github.com/Aman-CERP/meilihook/internal/telemetry"
)

var timeNow = time.Now

// openConnector creates the configured backend. A bleve index held by a
// running daemon cannot be opened a second time.
func openConnector(cfg *config.Config) (connector.Connector, error) {
	ccfg := cfg.ConnectorConfig()
	if ccfg.Backend == connector.BackendBleve && daemon.NewClient(cfg.DaemonConfig()).IsRunning() {
		return nil, errors.New(errors.ErrCodeDaemonLocked,
			"bleve index "+ccfg.LocalPath+" is held by the running daemon", nil).
			WithSuggestion("run 'meilihook daemon stop' first, or use the sqlite backend")
	}
	return connector.New(ccfg)
}

// openTelemetry returns nil when telemetry is disabled.
func openTelemetry(cfg *config.Config) (*telemetry.Store, error) {
	if !cfg.TelemetryEnabled() {
		return nil, nil
	}
	return telemetry.OpenStore(cfg.Telemetry.Path)
}

// outcomeRecorder keeps the last outcome per invocation and forwards every
// outcome to the counters.
type outcomeRecorder struct {
	counters *telemetry.Counters
	last     string
	total    map[string]int
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{counters: telemetry.NewCounters(), total: make(map[string]int)}
}

func (r *outcomeRecorder) Record(collection, outcome string) {
	r.last = outcome
	r.total[outcome]++
	r.counters.Record(collection, outcome)
}

// inProcess runs hooks against a connector in this process.
type inProcess struct {
	conn     connector.Connector
	listener *hooks.Listener
	recorder *outcomeRecorder
	store    *telemetry.Store
	logger   *slog.Logger
}

func newInProcess(cfg *config.Config, logger *slog.Logger) (*inProcess, error) {
	conn, err := openConnector(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openTelemetry(cfg)
	if err != nil {
		// Outcome history is optional; indexing still proceeds.
		logger.Warn("telemetry_unavailable", slog.String("error", err.Error()))
		store = nil
	}

	rec := newOutcomeRecorder()
	opts := append([]hooks.Option{
		hooks.WithLogger(logger),
		hooks.WithRecorder(rec),
	}, cfg.HookOptions()...)

	return &inProcess{
		conn:     conn,
		listener: hooks.NewListener(conn, opts...),
		recorder: rec,
		store:    store,
		logger:   logger,
	}, nil
}

// Close flushes outcome counts and releases the connector.
func (p *inProcess) Close() {
	if p.store != nil {
		if err := p.recorder.counters.Flush(p.store, timeNow()); err != nil {
			p.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
		}
		_ = p.store.Close()
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Warn("connector_close_failed", slog.String("error", err.Error()))
	}
}

// preflightTarget lists the paths this configuration will write to.
func preflightTarget(cfg *config.Config) preflight.Target {
	target := preflight.Target{
		SocketPath:  cfg.Daemon.SocketPath,
		ContentRoot: cfg.Watch.Root,
	}
	ccfg := cfg.ConnectorConfig()
	switch {
	case ccfg.Backend != connector.BackendMeilisearch:
		target.DataDir = filepath.Dir(ccfg.LocalPath)
	case cfg.TelemetryEnabled():
		target.DataDir = filepath.Dir(cfg.Telemetry.Path)
	}
	return target
}

// runPreflight prints each result and fails on a required check.
func runPreflight(ctx context.Context, out *output.Writer, cfg *config.Config) error {
	checker := preflight.New()
	results := checker.RunAll(ctx, preflightTarget(cfg))

	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == preflight.StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if r.Details != "" && r.Status != preflight.StatusPass {
			out.Status("", "  "+r.Details)
		}
	}

	if checker.HasCriticalFailures(results) {
		var failed []string
		for _, r := range results {
			if r.IsCritical() {
				failed = append(failed, r.Name)
			}
		}
		return errors.New(errors.ErrCodeConfigInvalid, "preflight failed: "+strings.Join(failed, ", "), nil)
	}
	return nil
}
