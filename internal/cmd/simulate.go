package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/validation"
)

// newSimulateCmd injects a customer message through the external channel
// endpoint, the same path real inbound traffic takes. Useful for demos and
// for exercising triage without a real customer.
func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <customer-id> [content]",
		Short: "Inject a customer message through the external channel",
		Example: strings.TrimSpace(`
  # Simulate an inbound message from customer 3
  branch simulate 3 "my payment failed and I need help urgently"

  # Pipe the message body
  cat complaint.txt | branch simulate 3
`),
		Args: cobra.RangeArgs(1, 2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			customerID, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(args[0]), "#"))
			if err != nil || customerID <= 0 {
				return fmt.Errorf("invalid customer ID %q: must be a positive integer", args[0])
			}

			var content string
			if len(args) > 1 {
				content = args[1]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read message from stdin: %w", err)
				}
				content = strings.TrimSpace(string(data))
			}
			if err := validation.ValidateMessageContent(content); err != nil {
				return err
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			msg, err := client.External().SendCustomerMessage(cmdContext(cmd), customerID, content)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, msg)
			}
			priority := msg.Priority
			if priority == "" {
				priority = "unset"
			}
			printIfNotQuiet(cmd, "Message %d landed in conversation %d (priority %s)\n",
				msg.ID, msg.ConversationID, priority)
			return nil
		}),
	}
	return cmd
}
