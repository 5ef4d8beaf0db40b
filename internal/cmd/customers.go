package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/resolve"
)

// newCustomersCmd returns the customers command with subcommands
func newCustomersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "customers",
		Aliases: []string{"customer", "cust"},
		Short:   "View customers",
	}

	cmd.AddCommand(newCustomersListCmd())
	cmd.AddCommand(newCustomersGetCmd())

	return cmd
}

func newCustomersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all customers",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			customers, err := client.Customers().List(cmdContext(cmd))
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, customers)
			}

			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE")
			for _, c := range customers {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Phone)
			}
			return w.Flush()
		}),
	}
	return cmd
}

func newCustomersGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <name-or-id>",
		Aliases: []string{"show"},
		Short:   "Show a single customer",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			ref := strings.TrimSpace(args[0])
			id, convErr := strconv.Atoi(strings.TrimPrefix(ref, "#"))
			if convErr != nil || id <= 0 {
				customers, err := client.Customers().List(ctx)
				if err != nil {
					return err
				}
				named := make([]resolve.Named, len(customers))
				for i, c := range customers {
					named[i] = resolve.Named{ID: c.ID, Name: c.Name}
				}
				id, err = resolve.FuzzyMatch(ref, named)
				if err != nil {
					return fmt.Errorf("no customer matching %q: %w", ref, err)
				}
			}

			customer, err := client.Customers().Get(ctx, id)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, customer)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "ID:     %d\n", customer.ID)
			_, _ = fmt.Fprintf(out, "Name:   %s\n", customer.Name)
			if customer.Email != "" {
				_, _ = fmt.Fprintf(out, "Email:  %s\n", customer.Email)
			}
			if customer.Phone != "" {
				_, _ = fmt.Fprintf(out, "Phone:  %s\n", customer.Phone)
			}
			if !customer.CreatedAt.IsZero() {
				_, _ = fmt.Fprintf(out, "Since:  %s\n", formatDate(customer.CreatedAt))
			}
			return nil
		}),
	}
	return cmd
}
