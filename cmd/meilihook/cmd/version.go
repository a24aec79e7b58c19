package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/meilihook/pkg/version"
)

// VersionOutput is the JSON form of the version command. UserAgent is the
// header value meilihook sends to Meilisearch, which is handy when matching
// requests in server logs.
type VersionOutput struct {
	version.BuildInfo
	UserAgent string `json:"user_agent"`
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including git commit, build date, Go version
and the User-Agent sent to Meilisearch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, jsonOutput, shortOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")
	return cmd
}

func runVersion(cmd *cobra.Command, jsonOutput, shortOutput bool) error {
	w := cmd.OutOrStdout()

	// --short wins over --json
	if shortOutput {
		_, err := fmt.Fprintln(w, version.Short())
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(VersionOutput{
			BuildInfo: version.GetInfo(),
			UserAgent: version.UserAgent(),
		})
	}

	if _, err := fmt.Fprintln(w, version.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "user-agent: %s\n", version.UserAgent())
	return err
}
