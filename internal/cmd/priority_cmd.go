package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/priority"
)

// newPriorityCmd runs the local triage heuristics over message text. This
// mirrors what the server does when a customer message arrives, so agents can
// sanity-check why a conversation landed where it did in the queue.
func newPriorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "priority",
		Aliases: []string{"triage"},
		Short:   "Run triage heuristics on message text",
	}

	cmd.AddCommand(newPriorityDetectCmd())
	cmd.AddCommand(newPrioritySentimentCmd())

	return cmd
}

func readMessageArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read message from stdin: %w", err)
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		return "", fmt.Errorf("message text is required (argument or stdin)")
	}
	return message, nil
}

func newPriorityDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [message]",
		Short: "Detect the priority a message would be triaged at",
		Example: strings.TrimSpace(`
  branch priority detect "my account was hacked"
  echo "payment failed twice" | branch priority detect --json
`),
		Args: cobra.MaximumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			message, err := readMessageArg(cmd, args)
			if err != nil {
				return err
			}

			result := priority.Detect(message)

			if isJSON(cmd) {
				return printJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			label := result.Priority
			if c := priorityColor(label); c != "" {
				label = colorize(c, label)
			}
			_, _ = fmt.Fprintf(out, "Priority:    %s\n", label)
			_, _ = fmt.Fprintf(out, "Confidence:  %.2f\n", result.Confidence)
			if len(result.Keywords) > 0 {
				_, _ = fmt.Fprintf(out, "Keywords:    %s\n", strings.Join(result.Keywords, ", "))
			}
			return nil
		}),
	}
	return cmd
}

func newPrioritySentimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentiment [message]",
		Short: "Analyze the sentiment of message text",
		Args:  cobra.MaximumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			message, err := readMessageArg(cmd, args)
			if err != nil {
				return err
			}

			result := priority.AnalyzeSentiment(message)

			if isJSON(cmd) {
				return printJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Overall:   %s\n", result.Overall)
			_, _ = fmt.Fprintf(out, "Score:     %+.2f\n", result.Score)
			_, _ = fmt.Fprintf(out, "Signals:   %d positive, %d negative, %d urgency\n",
				result.PositiveIndicators, result.NegativeIndicators, result.UrgencyIndicators)
			return nil
		}),
	}
	return cmd
}
