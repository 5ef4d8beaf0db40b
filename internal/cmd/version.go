package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if isJSON(cmd) && !check {
				return printJSON(cmd, map[string]any{"version": version})
			}
			if !isJSON(cmd) {
				_, _ = fmt.Fprintf(out, "branch-cli version %s\n", version)
			}

			if !check {
				// Passive check: non-blocking, fails silently.
				result := update.CheckForUpdate(cmd.Context(), version)
				if result != nil && result.UpdateAvailable {
					errOut := cmd.ErrOrStderr()
					_, _ = fmt.Fprintf(errOut, "\nUpdate available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
					_, _ = fmt.Fprintf(errOut, "Download: %s\n", result.UpdateURL)
				}
				return nil
			}

			result := update.CheckForUpdate(cmd.Context(), version)
			if result == nil {
				if version == "dev" || version == "" {
					return fmt.Errorf("update check is not available for development builds")
				}
				return fmt.Errorf("update check failed: could not reach the release feed")
			}

			if isJSON(cmd) {
				return printJSON(cmd, result)
			}
			if result.UpdateAvailable {
				_, _ = fmt.Fprintf(out, "Update available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
				_, _ = fmt.Fprintf(out, "Download: %s\n", result.UpdateURL)
			} else {
				_, _ = fmt.Fprintf(out, "Up to date (latest: %s)\n", result.LatestVersion)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check the release feed for a newer version")
	return cmd
}
