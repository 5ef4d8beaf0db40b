package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchlabs/branch-cli/internal/config"
	"github.com/branchlabs/branch-cli/internal/validation"
)

// newAuthCmd groups the credential management subcommands.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"au"},
		Short:   "Manage authentication credentials",
		Long:    "Configure and manage Branch API credentials stored securely in your OS keychain.",
	}
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthStatusCmd(),
		newAuthLogoutCmd(),
		newAuthProfilesCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		url     string
		token   string
		agentID int
		profile string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save credentials to the OS keychain",
		Long: strings.TrimSpace(`
Save Branch authentication credentials securely to your OS keychain.

You'll need:
- Base URL: Your Branch server URL (e.g. https://support.example.com)
- API Token: Issued by your Branch administrator
- Agent ID: Your numeric agent account ID

Optional:
- Profile: Save multiple accounts and switch between them
`),
		Example: strings.TrimSpace(`
  # Login with flags
  branch auth login --url https://support.example.com --token YOUR_TOKEN --agent-id 7

  # Save to a named profile
  branch auth login --url https://staging.example.com --token YOUR_TOKEN --agent-id 7 --profile staging
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			switch {
			case url == "":
				return fmt.Errorf("--url is required")
			case token == "":
				return fmt.Errorf("--token is required")
			case agentID <= 0:
				return fmt.Errorf("--agent-id must be a positive integer")
			}

			url = strings.TrimSuffix(strings.TrimSpace(url), "/")

			// SSRF guard before anything is stored
			if err := validation.ValidateServerURL(url); err != nil {
				return fmt.Errorf("invalid URL: %w", err)
			}

			err := config.SaveProfile(profile, config.Account{
				BaseURL:  url,
				APIToken: token,
				AgentID:  agentID,
			})
			if err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Authentication credentials saved successfully!\n  Base URL: %s\n  Agent ID: %d\n", url, agentID)
			if profile != "" && profile != "default" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&url, "url", "", "Branch server base URL (e.g. https://support.example.com)")
	cmd.Flags().StringVar(&token, "token", "", "API access token")
	cmd.Flags().IntVar(&agentID, "agent-id", 0, "Agent account ID")
	cmd.Flags().StringVar(&profile, "profile", "default", "Profile name to save credentials under")
	flagAlias(cmd.Flags(), "url", "ur")
	flagAlias(cmd.Flags(), "token", "tk")
	flagAlias(cmd.Flags(), "agent-id", "aid")
	flagAlias(cmd.Flags(), "profile", "pf")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current authentication status",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			account, err := config.LoadAccount()
			if err != nil {
				return err
			}

			reachable := false
			checked := false
			if !skipCheck {
				client, err := getClient()
				if err != nil {
					return err
				}
				checked = true
				ok, err := client.HealthCheck(cmdContext(cmd))
				reachable = err == nil && ok
			}

			profile, _ := config.CurrentProfile()

			if isJSON(cmd) {
				out := map[string]any{
					"base_url": account.BaseURL,
					"agent_id": account.AgentID,
					"profile":  profile,
				}
				if checked {
					out["reachable"] = reachable
				}
				return printJSON(cmd, out)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Base URL:  %s\n", account.BaseURL)
			_, _ = fmt.Fprintf(out, "Agent ID:  %d\n", account.AgentID)
			if profile != "" {
				_, _ = fmt.Fprintf(out, "Profile:   %s\n", profile)
			}
			if checked {
				if reachable {
					_, _ = fmt.Fprintf(out, "Server:    %s\n", colorize(colorGreen, "reachable"))
				} else {
					_, _ = fmt.Fprintf(out, "Server:    %s\n", colorize(colorRed, "unreachable"))
				}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&skipCheck, "no-check", false, "Skip the server health check")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if profile != "" {
				if err := config.DeleteProfile(profile); err != nil {
					return fmt.Errorf("failed to remove profile %q: %w", profile, err)
				}
				printIfNotQuiet(cmd, "Removed profile %q\n", profile)
				return nil
			}
			if err := config.DeleteAccount(); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			printIfNotQuiet(cmd, "Credentials removed\n")
			return nil
		}),
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Remove only the named profile")
	flagAlias(cmd.Flags(), "profile", "pf")
	return cmd
}

func newAuthProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "List and switch credential profiles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"profiles": profiles,
					"current":  current,
				})
			}

			out := cmd.OutOrStdout()
			for _, p := range profiles {
				marker := "  "
				if p == current {
					marker = "* "
				}
				_, _ = fmt.Fprintf(out, "%s%s\n", marker, p)
			}
			return nil
		}),
	}

	use := &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if _, err := config.LoadProfile(name); err != nil {
				return fmt.Errorf("profile %q not found: %w", name, err)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			printIfNotQuiet(cmd, "Switched to profile %q\n", name)
			return nil
		}),
	}

	cmd.AddCommand(list)
	cmd.AddCommand(use)
	return cmd
}
