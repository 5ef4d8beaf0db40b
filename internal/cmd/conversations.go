package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/api"
)

var (
	validStatuses   = []string{api.StatusOpen, api.StatusInProgress, api.StatusResolved, api.StatusClosed, "all"}
	validPriorities = []string{api.PriorityUrgent, api.PriorityHigh, api.PriorityMedium, api.PriorityLow, "all"}
)

// newConversationsCmd returns the conversations command with subcommands
func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conversation", "convs", "conv", "cv"},
		Short:   "Manage the conversation queue",
	}

	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsGetCmd())
	cmd.AddCommand(newConversationsStatsCmd())
	cmd.AddCommand(newConversationsReadCmd())
	cmd.AddCommand(newConversationsUpdateCmd())

	return cmd
}

func newConversationsListCmd() *cobra.Command {
	var (
		status     string
		priority   string
		mine       bool
		unassigned bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations ordered by priority and recency",
		Example: strings.TrimSpace(`
  # All open conversations
  branch conversations list --status open

  # Urgent conversations nobody has claimed
  branch conversations list --priority urgent --unassigned

  # Conversations assigned to you, as JSON
  branch conversations list --mine --json
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if mine && unassigned {
				return fmt.Errorf("--mine and --unassigned cannot be used together")
			}

			var params api.ListConversationsParams
			if status != "" {
				normalized, err := normalizeEnum("status", status, validStatuses)
				if err != nil {
					return err
				}
				params.Status = normalized
			}
			if priority != "" {
				normalized, err := normalizeEnum("priority", priority, validPriorities)
				if err != nil {
					return err
				}
				params.Priority = normalized
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			items, err := client.Conversations().List(cmdContext(cmd), params)
			if err != nil {
				return err
			}

			// Assignment filters are client-side; the server only filters by
			// status and priority.
			if mine || unassigned {
				filtered := items[:0]
				for _, item := range items {
					switch {
					case mine && item.AgentID != nil && *item.AgentID == client.AgentID:
						filtered = append(filtered, item)
					case unassigned && item.AgentID == nil:
						filtered = append(filtered, item)
					}
				}
				items = filtered
			}

			if isJSON(cmd) {
				return printJSON(cmd, items)
			}

			return printConversationTable(cmd, items)
		}),
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status: open|in_progress|resolved|closed|all")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority: urgent|high|medium|low|all")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only conversations assigned to you")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "Only unclaimed conversations")
	flagAlias(cmd.Flags(), "status", "st")
	flagAlias(cmd.Flags(), "priority", "pr")
	flagAlias(cmd.Flags(), "unassigned", "un")

	return cmd
}

func printConversationTable(cmd *cobra.Command, items []api.ConversationListItem) error {
	if len(items) == 0 {
		printIfNotQuiet(cmd, "No conversations found\n")
		return nil
	}

	w := newTabWriterFromCmd(cmd)
	_, _ = fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tAGENT\tUNREAD\tUPDATED\tLAST MESSAGE")
	for _, item := range items {
		agent := "-"
		if item.AssignedAgent != nil {
			agent = item.AssignedAgent.Name
		} else if item.AgentID != nil {
			agent = fmt.Sprintf("#%d", *item.AgentID)
		}
		unread := ""
		if item.UnreadCount > 0 {
			unread = colorize(colorBold, fmt.Sprintf("%d", item.UnreadCount))
		}
		preview := ""
		if item.LastMessage != nil {
			preview = truncate(strings.ReplaceAll(item.LastMessage.Content, "\n", " "), 48)
		}
		priority := item.Priority
		if c := priorityColor(priority); c != "" {
			priority = colorize(c, priority)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, priority, item.Status, agent, unread,
			formatTimestampShort(item.UpdatedAt), preview)
	}
	return w.Flush()
}

func newConversationsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <id>",
		Aliases: []string{"show", "view"},
		Short:   "Show a conversation with its message history",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			conv, err := client.Conversations().Get(cmdContext(cmd), id)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, conv)
			}

			return printConversationDetails(cmd, conv)
		}),
	}
	return cmd
}

func printConversationDetails(cmd *cobra.Command, conv *api.Conversation) error {
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "%s #%d\n", colorize(colorBold, "Conversation"), conv.ID)
	if conv.Subject != "" {
		_, _ = fmt.Fprintf(out, "Subject:   %s\n", conv.Subject)
	}
	if conv.Customer != nil {
		_, _ = fmt.Fprintf(out, "Customer:  %s (#%d)\n", conv.Customer.Name, conv.Customer.ID)
	}
	priority := conv.Priority
	if c := priorityColor(priority); c != "" {
		priority = colorize(c, priority)
	}
	_, _ = fmt.Fprintf(out, "Status:    %s\n", conv.Status)
	_, _ = fmt.Fprintf(out, "Priority:  %s\n", priority)
	if conv.AssignedAgent != nil {
		_, _ = fmt.Fprintf(out, "Agent:     %s (#%d)\n", conv.AssignedAgent.Name, conv.AssignedAgent.ID)
	} else {
		_, _ = fmt.Fprintf(out, "Agent:     unassigned\n")
	}
	_, _ = fmt.Fprintf(out, "Updated:   %s\n", formatTimestamp(conv.UpdatedAt))

	if len(conv.Messages) > 0 {
		_, _ = fmt.Fprintf(out, "\nMessages (%d):\n", len(conv.Messages))
		for _, msg := range conv.Messages {
			printMessageLine(out, msg)
		}
	}
	return nil
}

func newConversationsStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate queue counts",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			stats, err := client.Conversations().Stats(cmdContext(cmd))
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Total:       %d\n", stats.Total)
			_, _ = fmt.Fprintf(out, "Unassigned:  %d\n", stats.Unassigned)
			if len(stats.ByStatus) > 0 {
				_, _ = fmt.Fprintln(out, "\nBy status:")
				for _, key := range sortedKeys(stats.ByStatus) {
					_, _ = fmt.Fprintf(out, "  %-12s %d\n", key, stats.ByStatus[key])
				}
			}
			if len(stats.ByPriority) > 0 {
				_, _ = fmt.Fprintln(out, "\nBy priority:")
				for _, key := range sortedKeys(stats.ByPriority) {
					_, _ = fmt.Fprintf(out, "  %-12s %d\n", key, stats.ByPriority[key])
				}
			}
			return nil
		}),
	}
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newConversationsReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a conversation as read (resets the unread counter)",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			if err := client.Conversations().MarkRead(cmdContext(cmd), id); err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"conversation_id": id, "read": true})
			}
			printIfNotQuiet(cmd, "Marked conversation %d as read\n", id)
			return nil
		}),
	}
	return cmd
}

func newConversationsUpdateCmd() *cobra.Command {
	var (
		status   string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update conversation status or priority",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			if status == "" && priority == "" {
				return fmt.Errorf("at least one of --status or --priority is required")
			}

			var req api.UpdateConversationRequest
			if status != "" {
				normalized, err := normalizeEnum("status", status, validStatuses[:len(validStatuses)-1])
				if err != nil {
					return err
				}
				req.Status = &normalized
			}
			if priority != "" {
				normalized, err := normalizeEnum("priority", priority, validPriorities[:len(validPriorities)-1])
				if err != nil {
					return err
				}
				req.Priority = &normalized
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			updated, err := client.Conversations().Update(cmdContext(cmd), id, req)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, updated)
			}
			printIfNotQuiet(cmd, "Updated conversation %d (status=%s priority=%s)\n",
				updated.ID, updated.Status, updated.Priority)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "New status: open|in_progress|resolved|closed")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority: urgent|high|medium|low")
	flagAlias(cmd.Flags(), "status", "st")
	flagAlias(cmd.Flags(), "priority", "pr")

	return cmd
}
