package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/daemon"
	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/hooks"
	"github.com/Aman-CERP/meilihook/internal/output"
)

type hookFlags struct {
	direct bool
	strict bool
}

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Run a lifecycle hook for one record",
		Long: `Run afterCreate, afterUpdate or afterDelete for a record read from a file
or stdin.

If the daemon is running the hook is sent to it; otherwise it runs in this
process against the configured backend. Index failures are logged and do not
change the exit status unless --strict is given.

Examples:
  meilihook hook create article entry.json
  echo '{"id":7,"title":"Hi"}' | meilihook hook update article
  meilihook hook delete article '[{"id":1},{"id":2}]' --inline`,
	}

	cmd.AddCommand(newHookRunCmd("create", hooks.OpAfterCreate))
	cmd.AddCommand(newHookRunCmd("update", hooks.OpAfterUpdate))
	cmd.AddCommand(newHookRunCmd("delete", hooks.OpAfterDelete))
	return cmd
}

func newHookRunCmd(name, op string) *cobra.Command {
	var flags hookFlags
	var inline bool

	shape := "a JSON object"
	if op == hooks.OpAfterDelete {
		shape = "a JSON object or an array of objects"
	}

	cmd := &cobra.Command{
		Use:   name + " <collection> [file|-]",
		Short: fmt.Sprintf("Run %s for %s", op, shape),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src string
			if len(args) == 2 {
				src = args[1]
			}
			data, err := readHookInput(cmd.InOrStdin(), src, inline)
			if err != nil {
				return err
			}
			return runHook(cmd.Context(), cmd, op, args[0], data, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.direct, "direct", false, "Run in this process even if the daemon is running")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Exit non-zero when the index update fails (in-process only)")
	cmd.Flags().BoolVar(&inline, "inline", false, "Treat the second argument as JSON instead of a file path")
	return cmd
}

// readHookInput reads src, stdin when src is "" or "-", or src itself when
// inline is set.
func readHookInput(stdin io.Reader, src string, inline bool) ([]byte, error) {
	switch {
	case inline:
		if src == "" {
			return nil, fmt.Errorf("--inline requires JSON as the second argument")
		}
		return []byte(src), nil
	case src == "" || src == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		return data, nil
	}
}

func runHook(ctx context.Context, cmd *cobra.Command, op, collection string, data []byte, flags hookFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := output.New(cmd.OutOrStdout())

	var (
		e       entry.Entry
		records entry.Records
		err     error
	)
	if op == hooks.OpAfterDelete {
		records, err = entry.DecodeRecords(data)
	} else {
		e, err = entry.Decode(data)
	}
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !flags.direct {
		client := daemon.NewClient(cfg.DaemonConfig())
		if client.IsRunning() {
			switch op {
			case hooks.OpAfterCreate:
				err = client.AfterCreate(ctx, collection, e)
			case hooks.OpAfterUpdate:
				err = client.AfterUpdate(ctx, collection, e)
			default:
				err = client.AfterDelete(ctx, collection, records)
			}
			if err != nil {
				return fmt.Errorf("daemon rejected %s: %w", op, err)
			}
			out.Successf("%s accepted by daemon", op)
			return nil
		}
	}

	p, err := newInProcess(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer p.Close()

	switch op {
	case hooks.OpAfterCreate:
		p.listener.AfterCreate(ctx, collection, e)
	case hooks.OpAfterUpdate:
		p.listener.AfterUpdate(ctx, collection, e)
	default:
		p.listener.AfterDelete(ctx, collection, records)
	}

	return reportOutcome(out, op, collection, p.recorder.last, flags.strict)
}

func reportOutcome(out *output.Writer, op, collection, outcome string, strict bool) error {
	switch outcome {
	case hooks.OutcomeIndexed:
		out.Successf("%s: indexed into %s", op, collection)
	case hooks.OutcomeDeleted:
		out.Successf("%s: removed from %s", op, collection)
	case hooks.OutcomeSkippedUnpublished:
		out.Status("-", fmt.Sprintf("%s: skipped unpublished record", op))
	case hooks.OutcomeFailed:
		out.Warningf("%s: index update failed (see log)", op)
		if strict {
			return fmt.Errorf("%s failed for collection %s", op, collection)
		}
	default:
		// No outcome: collection filtered out or nothing to delete.
		out.Status("-", fmt.Sprintf("%s: nothing to do for %s", op, collection))
	}
	return nil
}
