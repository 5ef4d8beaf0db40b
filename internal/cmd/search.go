package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/validation"
)

// newSearchCmd searches conversations and customers server-side.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search <query>",
		Aliases: []string{"find", "s"},
		Short:   "Search conversations and customers",
		Long: strings.TrimSpace(`
Search message content and customer names in a single query.

Results come back grouped by resource type. Conversation matches search the
message bodies, not just subjects, so this is the quickest way to find "that
conversation where someone mentioned a refund".`),
		Example: strings.TrimSpace(`
  # Find conversations and customers mentioning "refund"
  branch search refund

  # JSON output for scripting
  branch search refund --json --jq '.conversations[].id'
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			query := args[0]
			if err := validation.ValidateSearchQuery(query); err != nil {
				return err
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			results, err := client.Search().Query(cmdContext(cmd), query)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, results)
			}

			out := cmd.OutOrStdout()
			total := len(results.Conversations) + len(results.Customers)
			if total == 0 {
				_, _ = fmt.Fprintf(out, "No results for %q\n", query)
				if len(results.Suggestions) > 0 {
					_, _ = fmt.Fprintf(out, "Try: %s\n", strings.Join(results.Suggestions, ", "))
				}
				return nil
			}

			_, _ = fmt.Fprintf(out, "Search results for %q:\n\n", query)
			for _, conv := range results.Conversations {
				preview := ""
				if conv.LastMessage != nil {
					preview = " " + truncate(strings.ReplaceAll(conv.LastMessage.Content, "\n", " "), 48)
				}
				_, _ = fmt.Fprintf(out, "  [conv]     #%-6d %s/%s%s\n",
					conv.ID, shortStatus(conv.Status), shortPriority(conv.Priority), preview)
			}
			for _, c := range results.Customers {
				email := c.Email
				if email == "" {
					email = "-"
				}
				_, _ = fmt.Fprintf(out, "  [customer] #%-6d %s <%s>\n", c.ID, c.Name, email)
			}
			_, _ = fmt.Fprintf(out, "\nTotal: %d conversations, %d customers\n",
				len(results.Conversations), len(results.Customers))
			return nil
		}),
	}
	return cmd
}
