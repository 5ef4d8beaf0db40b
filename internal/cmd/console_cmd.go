package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/console"
	"github.com/branchlabs/branch-cli/internal/livecache"
	"github.com/branchlabs/branch-cli/internal/stream"
)

// newConsoleCmd runs the live messaging session: it connects the event
// channel, keeps the queue reconciled, and streams events to the terminal
// until interrupted.
func newConsoleCmd() *cobra.Command {
	var (
		status    string
		priorityF string
		redisAddr string
		noWarm    bool
	)

	cmd := &cobra.Command{
		Use:     "console",
		Aliases: []string{"live", "watch"},
		Short:   "Run the live agent console",
		Long: strings.TrimSpace(`
Connect to the Branch event channel and stream queue activity.

The console loads an authoritative snapshot on every connect, reconciles
pushed events into the local queue, and reconnects with backoff when the
channel drops. With BRANCH_REDIS_ADDR set, the last known queue is shown
immediately while the snapshot loads.`),
		Example: strings.TrimSpace(`
  # Watch the open queue
  branch console

  # Only urgent traffic, as JSON lines for piping
  branch console --priority urgent --output jsonl
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			var params api.ListConversationsParams
			if status != "" {
				normalized, err := normalizeEnum("status", status, validStatuses)
				if err != nil {
					return err
				}
				params.Status = normalized
			}
			if priorityF != "" {
				normalized, err := normalizeEnum("priority", priorityF, validPriorities)
				if err != nil {
					return err
				}
				params.Priority = normalized
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			live := livecache.NewFromEnv()
			if redisAddr != "" {
				live = livecache.New(redisAddr, livecache.DefaultTTL)
			}
			defer func() { _ = live.Close() }()

			engine := console.New(console.Options{
				Client:     client,
				AgentID:    client.AgentID,
				Live:       live,
				ListParams: params,
			})

			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			jsonMode := isJSON(cmd)

			if !noWarm {
				if cachedAt, ok := engine.WarmStart(ctx); ok && !jsonMode {
					_, _ = fmt.Fprintf(out, "Showing cached queue from %s while connecting...\n",
						formatTimestampShort(cachedAt))
					printQueueSummary(cmd, engine)
				}
			}

			unsubscribe := engine.Hub().Subscribe(stream.TypeAll, func(f stream.Frame) {
				if jsonMode {
					_ = printJSON(cmd, f)
					return
				}
				printConsoleEvent(cmd, engine, f)
			})
			defer unsubscribe()

			if !jsonMode {
				_, _ = fmt.Fprintf(out, "Connecting as agent %d (Ctrl-C to stop)...\n", client.AgentID)
			}

			go func() {
				// Re-render the queue shortly after the first snapshot lands.
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if engine.Hub().Connected() && !engine.WarmOnly() {
							if !jsonMode {
								printQueueSummary(cmd, engine)
							}
							return
						}
					}
				}
			}()

			err = engine.Run(ctx)
			if errors.Is(err, context.Canceled) {
				if !jsonMode {
					_, _ = fmt.Fprintln(out, "\nConsole stopped")
				}
				return nil
			}
			return err
		}),
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Snapshot filter by status: open|in_progress|resolved|closed|all")
	cmd.Flags().StringVarP(&priorityF, "priority", "p", "", "Snapshot filter by priority: urgent|high|medium|low|all")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for warm starts (overrides BRANCH_REDIS_ADDR)")
	cmd.Flags().BoolVar(&noWarm, "no-warm", false, "Skip the cached queue preview")
	flagAlias(cmd.Flags(), "status", "st")
	flagAlias(cmd.Flags(), "priority", "pr")

	return cmd
}

func printQueueSummary(cmd *cobra.Command, engine *console.Engine) {
	items := engine.Queue().Items()
	if stats := engine.Stats(); stats != nil {
		printIfNotQuiet(cmd, "Queue: %d conversations, %d unassigned\n", stats.Total, stats.Unassigned)
	}
	_ = printConversationTable(cmd, items)
}

// printConsoleEvent renders one decoded event as a log line. Frames reaching
// hub subscribers are already reconciled, so queue lookups reflect the event.
func printConsoleEvent(cmd *cobra.Command, engine *console.Engine, f stream.Frame) {
	out := cmd.OutOrStdout()
	now := formatTimestampShort(time.Now())

	switch f.Type {
	case stream.EventNewMessage:
		ev, err := stream.DecodeNewMessage(f.Data)
		if err != nil {
			return
		}
		author := "agent"
		if ev.IsFromCustomer {
			author = "customer"
		}
		line := fmt.Sprintf("[%s] #%d %s: %s", now, ev.ConversationID, author,
			truncate(strings.ReplaceAll(ev.Content, "\n", " "), 64))
		if ev.IsFromCustomer {
			line = colorize(colorYellow, line)
		}
		_, _ = fmt.Fprintln(out, line)

	case stream.EventNewConversation:
		ev, err := stream.DecodeNewConversation(f.Data)
		if err != nil {
			return
		}
		line := fmt.Sprintf("[%s] new conversation #%d (%s)", now,
			ev.ID, ev.Priority)
		_, _ = fmt.Fprintln(out, colorize(colorBold, line))

	case stream.EventConversationUpdate:
		ev, err := stream.DecodeConversationUpdate(f.Data)
		if err != nil {
			return
		}
		var changes []string
		if row, ok := engine.Queue().Get(ev.ID); ok {
			changes = append(changes, fmt.Sprintf("status=%s priority=%s", row.Status, row.Priority))
			if row.AgentID != nil {
				changes = append(changes, fmt.Sprintf("agent=%d", *row.AgentID))
			} else {
				changes = append(changes, "unassigned")
			}
		}
		_, _ = fmt.Fprintf(out, "[%s] #%d updated %s\n", now, ev.ID,
			strings.Join(changes, " "))
	}
}
