package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newAPICmd performs raw authenticated requests against API paths. An escape
// hatch for endpoints without a dedicated subcommand.
func newAPICmd() *cobra.Command {
	var (
		method string
		input  string
	)

	cmd := &cobra.Command{
		Use:   "api <path>",
		Short: "Make a raw authenticated API request",
		Long: strings.TrimSpace(`
Make a raw request against an API path (relative to /api) using the stored
credentials. The response body is printed as-is, so --jq and --query work on
whatever the server returns.`),
		Example: strings.TrimSpace(`
  # GET a path directly
  branch api /conversations/42

  # POST with a JSON body from a file
  branch api /external/messages -X POST --input payload.json

  # POST with a body from stdin
  echo '{"customer_id":3,"content":"hi"}' | branch api /external/messages -X POST --input -
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			method = strings.ToUpper(strings.TrimSpace(method))
			switch method {
			case "GET", "POST", "PUT", "PATCH", "DELETE":
			default:
				return fmt.Errorf("invalid method %q: must be one of GET, POST, PUT, PATCH, DELETE", method)
			}

			var body any
			if input != "" {
				var data []byte
				var err error
				if input == "-" {
					data, err = io.ReadAll(cmd.InOrStdin())
				} else {
					data, err = os.ReadFile(input)
				}
				if err != nil {
					return fmt.Errorf("failed to read request body: %w", err)
				}
				if err := json.Unmarshal(data, &body); err != nil {
					return fmt.Errorf("request body is not valid JSON: %w", err)
				}
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			respBody, _, status, err := client.DoRaw(cmdContext(cmd), method, path, body)
			if err != nil {
				return err
			}

			if len(respBody) == 0 {
				printIfNotQuiet(cmd, "HTTP %d (empty body)\n", status)
				return nil
			}

			var decoded any
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(respBody))
				return nil
			}
			return printJSON(cmd, decoded)
		}),
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVar(&input, "input", "", "JSON request body from file ('-' for stdin)")
	flagAlias(cmd.Flags(), "input", "in")

	return cmd
}
