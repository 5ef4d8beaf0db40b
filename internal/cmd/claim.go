package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/resolve"
)

// claimConcurrency bounds parallel claim requests when multiple IDs are given.
const claimConcurrency = 4

type claimResult struct {
	ConversationID int    `json:"conversation_id"`
	Claimed        bool   `json:"claimed"`
	Agent          string `json:"agent,omitempty"`
	Error          string `json:"error,omitempty"`
}

// newClaimCmd assigns conversations to an agent. The server enforces each
// claim atomically; losing a race surfaces as a conflict error.
func newClaimCmd() *cobra.Command {
	var agentRef string

	cmd := &cobra.Command{
		Use:     "claim <conversation-id>...",
		Aliases: []string{"assign"},
		Short:   "Claim one or more conversations",
		Example: strings.TrimSpace(`
  # Claim a conversation for yourself
  branch claim 42

  # Assign it to a teammate by name
  branch claim 42 --agent "Dana"

  # Claim several at once
  branch claim 42 43 44
`),
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := parseConversationID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			client, err := getClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			agentID := client.AgentID
			if agentRef != "" {
				agentID, err = resolveAgentRef(cmd, client, agentRef)
				if err != nil {
					return err
				}
			}

			if len(ids) == 1 {
				updated, err := client.Conversations().Assign(ctx, ids[0], agentID)
				if err != nil {
					return err
				}
				if isJSON(cmd) {
					return printJSON(cmd, updated)
				}
				printIfNotQuiet(cmd, "Conversation %d claimed by %s\n", updated.ID, assignedName(updated, agentID))
				return nil
			}

			// Bulk claim: bounded parallelism, per-conversation outcomes.
			var mu sync.Mutex
			results := make([]claimResult, 0, len(ids))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(claimConcurrency)
			for _, id := range ids {
				g.Go(func() error {
					res := claimResult{ConversationID: id}
					updated, err := client.Conversations().Assign(gctx, id, agentID)
					if err != nil {
						res.Error = err.Error()
					} else {
						res.Claimed = true
						res.Agent = assignedName(updated, agentID)
					}
					mu.Lock()
					results = append(results, res)
					mu.Unlock()
					return nil
				})
			}
			_ = g.Wait()

			sort.Slice(results, func(i, j int) bool {
				return results[i].ConversationID < results[j].ConversationID
			})

			if isJSON(cmd) {
				return printJSON(cmd, results)
			}

			failed := 0
			for _, res := range results {
				if res.Claimed {
					printIfNotQuiet(cmd, "Conversation %d claimed by %s\n", res.ConversationID, res.Agent)
				} else {
					failed++
					printIfNotQuiet(cmd, "Conversation %d failed: %s\n", res.ConversationID, res.Error)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d claims failed", failed, len(results))
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&agentRef, "agent", "a", "", "Agent name or ID to assign (default: you)")
	flagAlias(cmd.Flags(), "agent", "ag")

	return cmd
}

func assignedName(item *api.ConversationListItem, agentID int) string {
	if item.AssignedAgent != nil {
		return item.AssignedAgent.Name
	}
	return fmt.Sprintf("agent %d", agentID)
}

// newReleaseCmd relinquishes a claim. The server only lets the current
// assignee release.
func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "release <conversation-id>",
		Aliases: []string{"unassign"},
		Short:   "Release a claimed conversation back to the queue",
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

			updated, err := client.Conversations().Release(cmdContext(cmd), id, client.AgentID)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, updated)
			}
			printIfNotQuiet(cmd, "Conversation %d released\n", updated.ID)
			return nil
		}),
	}
	return cmd
}

// resolveAgentRef resolves an agent by numeric ID or fuzzy name match.
func resolveAgentRef(cmd *cobra.Command, client *api.Client, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil && id > 0 {
		return id, nil
	}

	agents, err := listAgentsCached(cmd, client)
	if err != nil {
		return 0, err
	}
	named := make([]resolve.Named, len(agents))
	for i, agent := range agents {
		named[i] = resolve.Named{ID: agent.ID, Name: agent.Name}
	}
	id, err := resolve.FuzzyMatch(ref, named)
	if err != nil {
		return 0, fmt.Errorf("no agent matching %q: %w", ref, err)
	}
	return id, nil
}
