package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/internal/output"
	"github.com/Aman-CERP/meilihook/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show daily hook outcome totals",
		Long: `Display how many records were indexed, skipped as unpublished, deleted or
failed per collection and day.

Counts are flushed by the daemon every daemon.flush_interval and by CLI hooks
on exit, so the current day may lag slightly behind 'daemon status'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, days, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include, ending today")
	return cmd
}

// StatsOutput is the JSON output format for stats.
type StatsOutput struct {
	From   string                 `json:"from"`
	To     string                 `json:"to"`
	Days   []telemetry.DailyTotal `json:"days"`
	Totals map[string]int64       `json:"totals"`
}

func runStats(cmd *cobra.Command, days int, jsonOutput bool) error {
	if days < 1 {
		return errors.ValidationError(fmt.Sprintf("--days must be at least 1, got %d", days), nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openTelemetry(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.ConfigError("telemetry is disabled", nil).
			WithSuggestion("set telemetry.enabled: true to record hook outcomes")
	}
	defer store.Close()

	now := timeNow()
	result := StatsOutput{
		From:   now.AddDate(0, 0, -(days - 1)).Format(telemetry.DateLayout),
		To:     now.Format(telemetry.DateLayout),
		Totals: map[string]int64{},
	}
	result.Days, err = store.DailyTotals(result.From, result.To)
	if err != nil {
		return err
	}
	for _, d := range result.Days {
		result.Totals[d.Outcome] += d.Count
	}

	if jsonOutput {
		if result.Days == nil {
			result.Days = []telemetry.DailyTotal{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header(fmt.Sprintf("Hook outcomes %s to %s", result.From, result.To))
	if len(result.Days) == 0 {
		out.Status("", "No hook outcomes recorded")
		return nil
	}

	rows := make([][]string, 0, len(result.Days))
	for _, d := range result.Days {
		rows = append(rows, []string{d.Date, d.Collection, d.Outcome, strconv.FormatInt(d.Count, 10)})
	}
	out.Table([]string{"DATE", "COLLECTION", "OUTCOME", "COUNT"}, rows)

	outcomes := make([]string, 0, len(result.Totals))
	for o := range result.Totals {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	out.Newline()
	for _, o := range outcomes {
		out.KeyValue(o, result.Totals[o])
	}
	return nil
}
