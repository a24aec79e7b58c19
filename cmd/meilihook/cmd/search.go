package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/internal/output"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <collection> <query...>",
		Short: "Query the local bleve or sqlite index",
		Long: `Search the records indexed by the bleve or sqlite backend.

Meilisearch has its own search API; use it directly for that backend.
An empty collection ("") searches every collection.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], strings.Join(args[1:], " "), limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, collection, query string, limit int, jsonOutput bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openConnector(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	searcher, ok := conn.(connector.Searcher)
	if !ok {
		return errors.New(errors.ErrCodeUnknownBackend,
			fmt.Sprintf("backend %q does not support local search", cfg.Connector.Backend), nil).
			WithSuggestion("set connector.backend to bleve or sqlite")
	}

	hits, err := searcher.Search(ctx, collection, query, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		if hits == nil {
			hits = []connector.Hit{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Status("", "No results")
		return nil
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.Collection, h.ID, fmt.Sprintf("%.3f", h.Score)})
	}
	out.Table([]string{"COLLECTION", "ID", "SCORE"}, rows)
	return nil
}
