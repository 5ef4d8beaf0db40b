package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/iocontext"
	"github.com/branchlabs/branch-cli/internal/outfmt"
)

// getJQQuery returns the jq query, with --jq taking precedence over --query
// for consistency with gh CLI.
func getJQQuery() string {
	if flags.JQ != "" {
		return flags.JQ
	}
	return flags.Query
}

// getClient creates an API client from stored credentials.
func getClient() (*api.Client, error) {
	return newClientFactory().account()
}

// newTabWriter creates a tabwriter for text output.
func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func newTabWriterFromCmd(cmd *cobra.Command) *tabwriter.Writer {
	return newTabWriter(iocontext.GetIO(cmd.Context()).Out)
}

// printJSON outputs data as JSON, applying any --jq filter from the context.
func printJSON(cmd *cobra.Command, v any) error {
	ctx := cmd.Context()
	out := iocontext.GetIO(ctx).Out
	return outfmt.WriteJSONFiltered(out, v, outfmt.GetQuery(ctx), outfmt.IsCompact(ctx))
}

// printJSONErr writes a JSON value to stderr.
func printJSONErr(cmd *cobra.Command, v any) error {
	return outfmt.WriteJSON(iocontext.GetIO(cmd.Context()).ErrOut, v)
}

func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

// printIfNotQuiet prints to stdout unless --quiet is set.
func printIfNotQuiet(cmd *cobra.Command, format string, args ...any) {
	if flags.Quiet {
		return
	}
	_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, format, args...)
}

func cmdContext(cmd *cobra.Command) context.Context {
	return cmd.Context()
}

// normalizeEnum validates a flag value against the allowed enum values.
// Input is lowercased and trimmed; an exact match wins, then a unique
// prefix ("re" selects "resolved"). Anything else is a validation error.
func normalizeEnum(flagName, input string, valid []string) (string, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "", api.NewValidationError(flagName, input, valid)
	}

	var prefixMatches []string
	for _, v := range valid {
		if v == input {
			return v, nil
		}
		if strings.HasPrefix(v, input) {
			prefixMatches = append(prefixMatches, v)
		}
	}
	if len(prefixMatches) == 1 {
		return prefixMatches[0], nil
	}
	return "", api.NewValidationError(flagName, input, valid)
}

func isInteractive() bool {
	if flags.NoInput || flags.Yes {
		return false
	}
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

type confirmOptions struct {
	Prompt              string
	Expected            string
	CancelMessage       string
	Force               bool
	RequireForceForJSON bool
}

// confirmAction prompts for confirmation on stdin. --yes forces approval;
// JSON mode can require --force since there is no terminal conversation.
func confirmAction(cmd *cobra.Command, opts confirmOptions) (bool, error) {
	if flags.Yes {
		opts.Force = true
	}
	if opts.RequireForceForJSON && isJSON(cmd) && !opts.Force {
		return false, fmt.Errorf("--force flag is required when using --output json")
	}
	if opts.Force {
		return true, nil
	}

	out := cmd.OutOrStdout()
	if opts.Prompt != "" {
		_, _ = fmt.Fprint(out, opts.Prompt)
	}

	cancel := func() (bool, error) {
		if opts.CancelMessage != "" {
			_, _ = fmt.Fprintln(out, opts.CancelMessage)
		}
		return false, nil
	}

	reader := bufio.NewReader(iocontext.GetIO(cmd.Context()).In)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return cancel()
	}

	expected := strings.TrimSpace(strings.ToLower(opts.Expected))
	if expected == "" {
		expected = "y"
	}
	if strings.TrimSpace(strings.ToLower(response)) != expected {
		return cancel()
	}
	return true, nil
}

// errAlreadyHandled signals that an error was already printed to stderr.
// RunE wraps errors with it so cobra (SilenceErrors on the root) still sees
// a failure for the exit code without printing it a second time.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string { return e.err.Error() }
func (e *handledError) Unwrap() error { return errAlreadyHandled }
func (e *handledError) ExitCode() int { return e.exitCode }

// RunE wraps a command function so failures are printed once, in the format
// the output mode asks for, and carry their exit code out.
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if isJSON(cmd) {
			if structured := api.StructuredErrorFromError(err); structured != nil {
				_ = printJSONErr(cmd, structured)
			}
		} else {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}

var shortStatusCodes = map[string]string{
	api.StatusOpen:       "o",
	api.StatusInProgress: "i",
	api.StatusResolved:   "r",
	api.StatusClosed:     "c",
}

var shortPriorityCodes = map[string]string{
	api.PriorityUrgent: "u",
	api.PriorityHigh:   "h",
	api.PriorityMedium: "m",
	api.PriorityLow:    "l",
}

// shortStatus compresses a status value to one letter for compact columns.
func shortStatus(s string) string {
	if code, ok := shortStatusCodes[strings.TrimSpace(s)]; ok {
		return code
	}
	return s
}

// shortPriority compresses a priority value to one letter.
func shortPriority(p string) string {
	if code, ok := shortPriorityCodes[strings.TrimSpace(strings.ToLower(p))]; ok {
		return code
	}
	return p
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

const (
	timeLayout      = "2006-01-02 15:04:05"
	timeLayoutShort = "2006-01-02 15:04"
	dateLayout      = "2006-01-02"
)

var timeLocation *time.Location

func setTimeLocation(loc *time.Location) {
	timeLocation = loc
}

func formatTime(t time.Time, layout string) string {
	if timeLocation != nil {
		t = t.In(timeLocation)
	}
	return t.Format(layout)
}

func formatTimestamp(t time.Time) string      { return formatTime(t, timeLayout) }
func formatTimestampShort(t time.Time) string { return formatTime(t, timeLayoutShort) }
func formatDate(t time.Time) string           { return formatTime(t, dateLayout) }

// colorize wraps s in the given ANSI color when color output is enabled.
func colorize(color, s string) string {
	if !colorEnabled() {
		return s
	}
	return color + s + colorReset
}

func colorEnabled() bool {
	switch flags.Color {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// priorityColor maps a priority to its display color.
func priorityColor(p string) string {
	switch strings.ToLower(p) {
	case api.PriorityUrgent:
		return colorRed
	case api.PriorityHigh:
		return colorYellow
	}
	return ""
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// aliasBridgeValue wraps a pflag.Value so that setting the alias also marks
// the canonical flag as Changed.
type aliasBridgeValue struct {
	pflag.Value
	canonical *pflag.Flag
}

func (v *aliasBridgeValue) Set(s string) error {
	if err := v.Value.Set(s); err != nil {
		return err
	}
	v.canonical.Changed = true
	return nil
}

// flagAlias registers a hidden alias for an existing flag. Both share the
// same underlying Value; the alias is annotated so flagOrAliasChanged can
// trace it back to the canonical name.
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	canonical := fs.Lookup(name)
	if canonical == nil {
		return
	}
	fs.AddFlag(&pflag.Flag{
		Name:        alias,
		Usage:       fmt.Sprintf("Alias for --%s", name),
		Value:       &aliasBridgeValue{Value: canonical.Value, canonical: canonical},
		DefValue:    canonical.DefValue,
		NoOptDefVal: canonical.NoOptDefVal,
		Hidden:      true,
		Annotations: map[string][]string{"alias-of": {name}},
	})
}

// flagOrAliasChanged reports whether the named flag or any alias of it was
// set on the command line.
func flagOrAliasChanged(cmd *cobra.Command, name string) bool {
	aliasTargets := func(f *pflag.Flag) []string {
		if !f.Changed {
			return nil
		}
		return f.Annotations["alias-of"]
	}

	changed := false
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()} {
		if fs.Changed(name) {
			changed = true
		}
		fs.VisitAll(func(f *pflag.Flag) {
			for _, target := range aliasTargets(f) {
				if target == name {
					changed = true
				}
			}
		})
	}
	return changed
}

// parseConversationID parses a conversation ID argument, accepting both
// "12" and the "#12" form used in display output.
func parseConversationID(arg string) (int, error) {
	arg = strings.TrimSpace(strings.TrimPrefix(arg, "#"))
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation ID %q: must be a positive integer", arg)
	}
	return id, nil
}
