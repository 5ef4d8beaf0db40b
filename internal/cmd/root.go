package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/debug"
	"github.com/branchlabs/branch-cli/internal/iocontext"
	"github.com/branchlabs/branch-cli/internal/outfmt"
	"github.com/branchlabs/branch-cli/internal/validation"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output                  string
	Color                   string
	Debug                   bool
	Quiet                   bool
	Silent                  bool
	NoInput                 bool
	Yes                     bool
	JSON                    bool
	AllowPrivate            bool
	Query                   string
	QueryFile               string
	JQ                      string
	ItemsOnly               bool
	Compact                 bool
	Timeout                 time.Duration
	UTC                     bool
	TimeZone                string
	MaxRateLimitRetries     int
	Max5xxRetries           int
	RateLimitDelay          time.Duration
	ServerErrorDelay        time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerResetTime time.Duration

	MaxRateLimitRetriesSet     bool
	Max5xxRetriesSet           bool
	RateLimitDelaySet          bool
	ServerErrorDelaySet        bool
	CircuitBreakerThresholdSet bool
	CircuitBreakerResetTimeSet bool
}

// flags is package-level mutable state and MUST be reset at the start of
// every Execute() call. Tests depend on this reset for isolation; reading
// flags outside a command's RunE yields stale data from the previous run.
var flags = rootFlags{
	Output:  defaultOutput(),
	Color:   "auto",
	Timeout: api.DefaultTimeout,
}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv("BRANCH_OUTPUT")); value != "" {
		return normalizeOutputFormat(value)
	}
	return "text"
}

func parseBoolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func normalizeOutputFormat(value string) string {
	value = strings.TrimSpace(value)
	if value == "ndjson" {
		return "jsonl"
	}
	return value
}

func loadQueryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("--query-file requires a file path")
	}

	var data []byte
	var err error
	if path == "-" {
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return "", fmt.Errorf("failed to read query from stdin: %w", err)
		}
	} else {
		if data, err = os.ReadFile(path); err != nil {
			return "", fmt.Errorf("failed to read --query-file %q: %w", path, err)
		}
	}

	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("--query-file %q is empty", path)
	}
	return query, nil
}

// resolveOutput settles the final output format from --output/--json and
// the flags that imply JSON (--jq, --query, --items-only).
func resolveOutput(cmd *cobra.Command) error {
	flags.Output = normalizeOutputFormat(flags.Output)

	if flags.QueryFile != "" {
		if flags.Query != "" || flags.JQ != "" {
			return fmt.Errorf("--query-file cannot be used with --query or --jq")
		}
		queryFromFile, err := loadQueryFile(flags.QueryFile)
		if err != nil {
			return err
		}
		flags.Query = queryFromFile
	}

	if flags.JSON {
		if flagOrAliasChanged(cmd, "output") && flags.Output != "json" {
			return fmt.Errorf("--json conflicts with --output %s", flags.Output)
		}
		flags.Output = "json"
	}

	needsJSON := flags.Query != "" || flags.JQ != "" || flags.ItemsOnly
	if needsJSON && flags.Output != "json" && flags.Output != "jsonl" {
		if flagOrAliasChanged(cmd, "output") {
			return fmt.Errorf("--jq/--query/--query-file/--items-only require --output json or jsonl/ndjson (or --json)")
		}
		flags.Output = "json"
	}
	return nil
}

func validateRetryFlags(cmd *cobra.Command) error {
	fs := cmd.Flags()
	flags.MaxRateLimitRetriesSet = fs.Changed("max-rate-limit-retries")
	flags.Max5xxRetriesSet = fs.Changed("max-5xx-retries")
	flags.RateLimitDelaySet = fs.Changed("rate-limit-delay")
	flags.ServerErrorDelaySet = fs.Changed("server-error-delay")
	flags.CircuitBreakerThresholdSet = fs.Changed("circuit-breaker-threshold")
	flags.CircuitBreakerResetTimeSet = fs.Changed("circuit-breaker-reset-time")

	checks := []struct {
		set      bool
		negative bool
		name     string
	}{
		{flags.MaxRateLimitRetriesSet, flags.MaxRateLimitRetries < 0, "--max-rate-limit-retries"},
		{flags.Max5xxRetriesSet, flags.Max5xxRetries < 0, "--max-5xx-retries"},
		{flags.RateLimitDelaySet, flags.RateLimitDelay < 0, "--rate-limit-delay"},
		{flags.ServerErrorDelaySet, flags.ServerErrorDelay < 0, "--server-error-delay"},
		{flags.CircuitBreakerThresholdSet, flags.CircuitBreakerThreshold < 0, "--circuit-breaker-threshold"},
		{flags.CircuitBreakerResetTimeSet, flags.CircuitBreakerResetTime < 0, "--circuit-breaker-reset-time"},
	}
	for _, check := range checks {
		if check.set && check.negative {
			return fmt.Errorf("%s must be >= 0", check.name)
		}
	}
	return nil
}

func resolveTimeLocation() error {
	switch {
	case flags.UTC && flags.TimeZone != "":
		return fmt.Errorf("--utc and --time-zone cannot be used together")
	case flags.UTC:
		setTimeLocation(time.UTC)
	case flags.TimeZone != "":
		loc, err := time.LoadLocation(flags.TimeZone)
		if err != nil {
			return fmt.Errorf("invalid --time-zone %q: %w", flags.TimeZone, err)
		}
		setTimeLocation(loc)
	}
	return nil
}

func rootPreRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := resolveOutput(cmd); err != nil {
		return err
	}

	// -y/--yes implies non-interactive mode.
	if flags.Yes {
		flags.NoInput = true
	}

	mode, err := outfmt.Parse(flags.Output)
	if err != nil {
		return err
	}
	ctx = outfmt.WithMode(ctx, mode)
	ctx = outfmt.WithCompact(ctx, flags.Compact)

	// IO streams; --silent/--quiet suppress stderr, --quiet also stdout in
	// text mode (JSON output is the point of the command, so it stays).
	ioStreams := iocontext.DefaultIO()
	if flags.Silent || flags.Quiet {
		ioStreams.ErrOut = io.Discard
	}
	if flags.Quiet && mode == outfmt.Text {
		ioStreams.Out = io.Discard
	}
	ctx = iocontext.WithIO(ctx, ioStreams)
	cmd.SetOut(ioStreams.Out)
	cmd.SetErr(ioStreams.ErrOut)

	allowPrivate := parseBoolEnv("BRANCH_ALLOW_PRIVATE") || flags.AllowPrivate
	validation.SetAllowPrivate(allowPrivate)
	if allowPrivate && !flags.Silent && !flags.Quiet {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: allowing private/localhost URLs (use only with trusted targets).")
	}

	debug.SetupLogger(flags.Debug)
	ctx = debug.WithDebug(ctx, flags.Debug)

	jqQuery := getJQQuery()
	if flags.ItemsOnly && jqQuery == "" {
		jqQuery = ".items // .results // ."
	}
	if jqQuery != "" {
		ctx = outfmt.WithQuery(ctx, jqQuery)
	}

	if err := validateRetryFlags(cmd); err != nil {
		return err
	}
	if err := resolveTimeLocation(); err != nil {
		return err
	}

	cmd.SetContext(ctx)
	return nil
}

func registerRootFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl|ndjson (env BRANCH_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.StringVar(&flags.Color, "color", flags.Color, "Color output: auto|always|never")
	pf.BoolVar(&flags.AllowPrivate, "allow-private", flags.AllowPrivate, "Allow private/localhost URLs (unsafe)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter JSON output")
	pf.StringVar(&flags.QueryFile, "query-file", "", "Read JQ expression from file ('-' for stdin)")
	pf.StringVar(&flags.JQ, "jq", "", "Alias for --query")
	pf.BoolVar(&flags.ItemsOnly, "items-only", false, "Output only the items/results array when present (JSON output)")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	pf.BoolVar(&flags.Silent, "silent", false, "Suppress non-error output to stderr")
	pf.BoolVar(&flags.NoInput, "no-input", false, "Disable interactive prompts")
	pf.BoolVarP(&flags.Yes, "yes", "y", false, "Skip confirmation prompts")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.BoolVar(&flags.UTC, "utc", false, "Display timestamps in UTC")
	pf.StringVar(&flags.TimeZone, "time-zone", "", "Time zone for displayed timestamps (e.g., America/Los_Angeles)")
	pf.IntVar(&flags.MaxRateLimitRetries, "max-rate-limit-retries", 0, "Max retries for 429 responses (overrides env)")
	pf.IntVar(&flags.Max5xxRetries, "max-5xx-retries", 0, "Max retries for 5xx responses (overrides env)")
	pf.DurationVar(&flags.RateLimitDelay, "rate-limit-delay", 0, "Base delay for 429 retries (e.g., 1s; overrides env)")
	pf.DurationVar(&flags.ServerErrorDelay, "server-error-delay", 0, "Delay between 5xx retries (e.g., 1s; overrides env)")
	pf.IntVar(&flags.CircuitBreakerThreshold, "circuit-breaker-threshold", 0, "Failures before circuit opens (overrides env)")
	pf.DurationVar(&flags.CircuitBreakerResetTime, "circuit-breaker-reset-time", 0, "Circuit breaker reset time (e.g., 30s; overrides env)")

	// Short aliases for persistent flags
	aliases := map[string]string{
		"output":                     "out",
		"query":                      "qr",
		"query-file":                 "qf",
		"items-only":                 "io",
		"compact-json":               "cj",
		"color":                      "clr",
		"debug":                      "dbg",
		"silent":                     "sil",
		"no-input":                   "ni",
		"timeout":                    "to",
		"time-zone":                  "tz",
		"utc":                        "ut",
		"allow-private":              "ap",
		"max-rate-limit-retries":     "max-rl",
		"rate-limit-delay":           "rld",
		"server-error-delay":         "sedly",
		"max-5xx-retries":            "m5x",
		"circuit-breaker-threshold":  "cbt",
		"circuit-breaker-reset-time": "cbr",
	}
	for name, alias := range aliases {
		flagAlias(pf, name, alias)
	}
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// Reset flags to defaults on every execution. Critical for test
	// isolation; see the invariant comment on the flags declaration.
	flags = rootFlags{
		Output:       defaultOutput(),
		Color:        "auto",
		AllowPrivate: parseBoolEnv("BRANCH_ALLOW_PRIVATE"),
		Timeout:      api.DefaultTimeout,
	}
	setTimeLocation(nil)

	root := &cobra.Command{
		Use:                "branch",
		Short:              "CLI for the Branch Messaging support console",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // we provide our own did-you-mean via enhanceUnknownError
		PersistentPreRunE:  rootPreRun,
	}

	root.SetContext(ctx)
	root.SetArgs(args)
	registerRootFlags(root)

	for _, sub := range []*cobra.Command{
		newAuthCmd(),
		newConversationsCmd(),
		newMessagesCmd(),
		newReplyCmd(),
		newClaimCmd(),
		newReleaseCmd(),
		newConsoleCmd(),
		newCannedCmd(),
		newAgentsCmd(),
		newCustomersCmd(),
		newSearchCmd(),
		newPriorityCmd(),
		newSimulateCmd(),
		newAPICmd(),
		newCacheCmd(),
		newVersionCmd(),
	} {
		root.AddCommand(sub)
	}

	targetCmd, err := root.ExecuteC()
	if err != nil && !errors.Is(err, errAlreadyHandled) {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
	}
	return err
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown
// command/flag errors. targetCmd is the command cobra resolved before the
// error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "unknown command"):
		unknown := extractQuoted(msg)
		if unknown == "" {
			return msg
		}
		var names []string
		for _, c := range root.Commands() {
			if c.IsAvailableCommand() || c.Name() == "help" {
				names = append(names, c.Name())
				names = append(names, c.Aliases...)
			}
		}
		if suggestion := suggestCommand(unknown, names); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
		}

	case strings.Contains(msg, "unknown flag"),
		strings.Contains(msg, "flag provided but not defined"),
		strings.Contains(msg, "unknown shorthand flag"):
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		flagNames := collectFlagNames(root, targetCmd)
		helpCmd := "branch --help"
		if targetCmd != nil {
			if commandPath := strings.TrimSpace(targetCmd.CommandPath()); commandPath != "" {
				helpCmd = commandPath + " --help"
			}
		}
		if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

// collectFlagNames gathers flag names from the target command rather than
// root, so subcommand flags like --status on "conversations list" are
// candidates for suggestions.
func collectFlagNames(root, targetCmd *cobra.Command) []string {
	seen := make(map[string]bool)
	var flagNames []string
	add := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			for _, name := range []string{"--" + f.Name, "-" + f.Shorthand} {
				if name == "-" || seen[name] {
					continue
				}
				seen[name] = true
				flagNames = append(flagNames, name)
			}
		})
	}
	if targetCmd != nil {
		add(targetCmd.Flags())
		add(targetCmd.InheritedFlags())
	} else {
		add(root.Flags())
		add(root.PersistentFlags())
	}
	return flagNames
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	if idx := strings.Index(s, "--"); idx >= 0 {
		rest := s[idx:]
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimRight(rest, ".,;:!?\"'")
	}

	// Shorthand errors look like: "unknown shorthand flag: 'a' in -a"
	idx := strings.LastIndex(s, " -")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(s[idx+1:])
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimRight(rest, ".,;:!?\"'")
	if strings.HasPrefix(rest, "-") && len(rest) > 1 {
		return rest
	}
	return ""
}
