package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/cache"
	"github.com/branchlabs/branch-cli/internal/livecache"
)

// newCacheCmd returns the cache command with subcommands
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage local response caches",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheStatusCmd())

	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var includeLive bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached API responses",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir, err := cache.DefaultDir()
			if err != nil {
				return fmt.Errorf("failed to locate cache directory: %w", err)
			}
			cache.ClearAll(dir)

			if includeLive {
				live := livecache.NewFromEnv()
				defer func() { _ = live.Close() }()
				if live.Enabled() {
					client, err := getClient()
					if err != nil {
						return err
					}
					if err := live.Clear(cmdContext(cmd), client.BaseURL, client.AgentID); err != nil {
						return fmt.Errorf("failed to clear live queue snapshot: %w", err)
					}
				}
			}

			printIfNotQuiet(cmd, "Cache cleared\n")
			return nil
		}),
	}

	cmd.Flags().BoolVar(&includeLive, "live", false, "Also clear the Redis queue snapshot")
	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache configuration and size",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir, err := cache.DefaultDir()
			if err != nil {
				return fmt.Errorf("failed to locate cache directory: %w", err)
			}

			var files, bytes int64
			if entries, err := os.ReadDir(dir); err == nil {
				for _, entry := range entries {
					info, err := entry.Info()
					if err != nil || info.IsDir() {
						continue
					}
					files++
					bytes += info.Size()
				}
			}

			disabled := os.Getenv("BRANCH_NO_CACHE") != ""
			redisAddr := os.Getenv("BRANCH_REDIS_ADDR")

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"dir":        dir,
					"files":      files,
					"bytes":      bytes,
					"disabled":   disabled,
					"redis_addr": redisAddr,
				})
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Directory:  %s\n", dir)
			_, _ = fmt.Fprintf(out, "Entries:    %d (%d bytes)\n", files, bytes)
			if disabled {
				_, _ = fmt.Fprintln(out, "File cache: disabled (BRANCH_NO_CACHE)")
			} else {
				_, _ = fmt.Fprintln(out, "File cache: enabled")
			}
			if redisAddr != "" {
				_, _ = fmt.Fprintf(out, "Live cache: %s\n", redisAddr)
			} else {
				_, _ = fmt.Fprintln(out, "Live cache: disabled (BRANCH_REDIS_ADDR unset)")
			}
			return nil
		}),
	}
	return cmd
}
