package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/validation"
)

// newMessagesCmd returns the messages command with subcommands
func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"message", "msgs", "msg"},
		Short:   "Read and send conversation messages",
	}

	cmd.AddCommand(newMessagesListCmd())
	cmd.AddCommand(newMessagesSendCmd())

	return cmd
}

func newMessagesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list <conversation-id>",
		Aliases: []string{"ls"},
		Short:   "List the message history of a conversation",
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

			messages, err := client.Messages().List(cmdContext(cmd), id)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, messages)
			}

			if len(messages) == 0 {
				printIfNotQuiet(cmd, "No messages in conversation %d\n", id)
				return nil
			}
			out := cmd.OutOrStdout()
			for _, msg := range messages {
				printMessageLine(out, msg)
			}
			return nil
		}),
	}
	return cmd
}

func printMessageLine(out io.Writer, msg api.Message) {
	author := colorize(colorGreen, "agent")
	if msg.IsFromCustomer {
		author = colorize(colorYellow, "customer")
	}
	_, _ = fmt.Fprintf(out, "[%s] %s: %s\n",
		formatTimestampShort(msg.CreatedAt), author,
		strings.TrimSpace(msg.Content))
}

func newMessagesSendCmd() *cobra.Command {
	cmd := newReplyCmd()
	cmd.Use = "send <conversation-id> [content]"
	cmd.Aliases = nil
	return cmd
}

// newReplyCmd posts an agent reply to a conversation. Content comes from the
// argument, --canned, or stdin, in that order of precedence.
func newReplyCmd() *cobra.Command {
	var canned string

	cmd := &cobra.Command{
		Use:     "reply <conversation-id> [content]",
		Aliases: []string{"r"},
		Short:   "Send a reply to a conversation",
		Example: strings.TrimSpace(`
  # Reply with inline content
  branch reply 42 "On it, give me a minute"

  # Reply with a canned template by shortcut
  branch reply 42 --canned greeting

  # Reply from stdin
  echo "Done, closing this out." | branch reply 42
`),
		Args: cobra.RangeArgs(1, 2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}

			client, err := getClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			var content string
			switch {
			case canned != "":
				if len(args) > 1 {
					return fmt.Errorf("--canned cannot be combined with inline content")
				}
				template, err := resolveCannedMessage(cmd, client, canned)
				if err != nil {
					return err
				}
				content = template.Content
				// Bump the usage counter; a failure here must not block the reply.
				if _, err := client.CannedMessages().Use(ctx, template.ID); err != nil {
					printIfNotQuiet(cmd, "Warning: failed to record canned message use: %v\n", err)
				}
			case len(args) > 1:
				content = args[1]
			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read message from stdin: %w", err)
				}
				content = strings.TrimSpace(string(data))
			}

			if err := validation.ValidateMessageContent(content); err != nil {
				return err
			}

			msg, err := client.Messages().Send(ctx, id, client.AgentID, content)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, msg)
			}
			printIfNotQuiet(cmd, "Sent message %d to conversation %d\n", msg.ID, msg.ConversationID)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&canned, "canned", "c", "", "Canned message shortcut or ID to send")
	flagAlias(cmd.Flags(), "canned", "cn")

	return cmd
}
