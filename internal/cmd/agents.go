package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/cache"
)

// newAgentsCmd returns the agents command with subcommands
func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agents",
		Aliases: []string{"agent", "ag"},
		Short:   "View support agents",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsGetCmd())

	return cmd
}

func newAgentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all agents",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			agents, err := listAgentsCached(cmd, client)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, agents)
			}

			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS")
			for _, agent := range agents {
				status := agent.Status
				if agent.Status == "online" {
					status = colorize(colorGreen, status)
				}
				marker := ""
				if agent.ID == client.AgentID {
					marker = " (you)"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\n",
					agent.ID, agent.Name, marker, agent.Email, status)
			}
			return w.Flush()
		}),
	}
	return cmd
}

func newAgentsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <name-or-id>",
		Aliases: []string{"show"},
		Short:   "Show a single agent",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			id, err := resolveAgentRef(cmd, client, args[0])
			if err != nil {
				return err
			}

			agent, err := client.Agents().Get(cmdContext(cmd), id)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, agent)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "ID:      %d\n", agent.ID)
			_, _ = fmt.Fprintf(out, "Name:    %s\n", agent.Name)
			if agent.Email != "" {
				_, _ = fmt.Fprintf(out, "Email:   %s\n", agent.Email)
			}
			if agent.Status != "" {
				_, _ = fmt.Fprintf(out, "Status:  %s\n", agent.Status)
			}
			return nil
		}),
	}
	return cmd
}

// listAgentsCached fetches the agent roster through the short-lived file cache.
func listAgentsCached(cmd *cobra.Command, client *api.Client) ([]api.Agent, error) {
	var store *cache.Store
	if dir, err := cache.DefaultDir(); err == nil {
		store = cache.NewStore(dir, "agents", client.BaseURL, client.AgentID)
		var cached []api.Agent
		if store.Get(&cached) {
			return cached, nil
		}
	}

	agents, err := client.Agents().List(cmdContext(cmd))
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.Put(agents)
	}
	return agents, nil
}
