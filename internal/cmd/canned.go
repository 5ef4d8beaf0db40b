package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/cache"
	"github.com/branchlabs/branch-cli/internal/resolve"
)

// newCannedCmd returns the canned messages command with subcommands
func newCannedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "canned",
		Aliases: []string{"templates", "tpl"},
		Short:   "Browse reusable reply templates",
	}

	cmd.AddCommand(newCannedListCmd())
	cmd.AddCommand(newCannedShowCmd())

	return cmd
}

func newCannedListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List canned messages, most used first",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			templates, err := listCannedCached(cmd, client, category)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, templates)
			}

			if len(templates) == 0 {
				printIfNotQuiet(cmd, "No canned messages found\n")
				return nil
			}
			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintln(w, "ID\tSHORTCUT\tCATEGORY\tUSES\tTITLE")
			for _, t := range templates {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					t.ID, t.Shortcut, t.Category, t.UsageCount, t.Title)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	flagAlias(cmd.Flags(), "category", "cat")

	return cmd
}

func newCannedShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <shortcut-or-id>",
		Short: "Show a canned message body",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			template, err := resolveCannedMessage(cmd, client, args[0])
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, template)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (/%s)\n\n", colorize(colorBold, template.Title), template.Shortcut)
			_, _ = fmt.Fprintln(out, template.Content)
			return nil
		}),
	}
	return cmd
}

// listCannedCached fetches canned messages through the short-lived file cache.
// Only the unfiltered listing is cached; category filters always hit the server.
func listCannedCached(cmd *cobra.Command, client *api.Client, category string) ([]api.CannedMessage, error) {
	ctx := cmdContext(cmd)
	if category != "" {
		return client.CannedMessages().List(ctx, category)
	}

	var store *cache.Store
	if dir, err := cache.DefaultDir(); err == nil {
		store = cache.NewStore(dir, "canned", client.BaseURL, client.AgentID)
		var cached []api.CannedMessage
		if store.Get(&cached) {
			return cached, nil
		}
	}

	templates, err := client.CannedMessages().List(ctx, "")
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.Put(templates)
	}
	return templates, nil
}

// resolveCannedMessage resolves a canned message by numeric ID, exact
// shortcut, or fuzzy shortcut/title match.
func resolveCannedMessage(cmd *cobra.Command, client *api.Client, ref string) (*api.CannedMessage, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "/"))
	if ref == "" {
		return nil, fmt.Errorf("canned message reference cannot be empty")
	}

	templates, err := listCannedCached(cmd, client, "")
	if err != nil {
		return nil, err
	}

	if id, err := strconv.Atoi(ref); err == nil {
		for i := range templates {
			if templates[i].ID == id {
				return &templates[i], nil
			}
		}
		return nil, fmt.Errorf("no canned message with ID %d", id)
	}

	for i := range templates {
		if strings.EqualFold(templates[i].Shortcut, ref) {
			return &templates[i], nil
		}
	}

	named := make([]resolve.Named, len(templates))
	for i, t := range templates {
		name := t.Shortcut
		if name == "" {
			name = t.Title
		}
		named[i] = resolve.Named{ID: t.ID, Name: name}
	}
	id, err := resolve.FuzzyMatch(ref, named)
	if err != nil {
		return nil, fmt.Errorf("no canned message matching %q: %w", ref, err)
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("no canned message matching %q", ref)
}
