package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/daemon"
	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/internal/output"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the configured backend and daemon are reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd)
		},
	}
}

func runCheck(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out.Successf("Config valid (backend: %s)", cfg.ConnectorConfig().Backend)

	if err := runPreflight(ctx, out, cfg); err != nil {
		return err
	}

	client := daemon.NewClient(cfg.DaemonConfig())

	conn, err := openConnector(cfg)
	switch {
	case errors.GetCode(err) == errors.ErrCodeDaemonLocked:
		out.Successf("Local index in use by the daemon (%s)", cfg.ConnectorConfig().LocalPath)
	case err != nil:
		out.Errorf("Backend unavailable: %v", err)
		return err
	default:
		defer conn.Close()
		if err := checkBackend(ctx, out, cfg.Connector.Host, cfg.ConnectorConfig().LocalPath, conn); err != nil {
			return err
		}
	}

	if err := client.Ping(ctx); err != nil {
		out.Warning("Daemon not running; hooks will run in-process")
	} else {
		out.Success("Daemon responding")
	}
	return nil
}

func checkBackend(ctx context.Context, out *output.Writer, host, localPath string, conn connector.Connector) error {
	if hc, ok := conn.(connector.HealthChecker); ok {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := hc.Health(hctx); err != nil {
			out.Errorf("Backend unhealthy: %v", err)
			return err
		}
		out.Successf("Backend healthy (%s)", host)
		return nil
	}
	out.Successf("Local index open (%s)", localPath)
	return nil
}
