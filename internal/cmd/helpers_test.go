package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEnum(t *testing.T) {
	valid := []string{"open", "in_progress", "resolved", "closed", "all"}

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"open", "open", false},
		{"OPEN", "open", false},
		{"  resolved ", "resolved", false},
		{"in", "in_progress", false}, // unique prefix
		{"cl", "closed", false},
		{"re", "resolved", false},
		{"x", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := normalizeEnum("status", tt.input, valid)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeEnumAmbiguousPrefix(t *testing.T) {
	valid := []string{"urgent", "high", "medium", "low", "all"}

	// "l" matches only "low"; a prefix matching two values is rejected.
	got, err := normalizeEnum("priority", "l", valid)
	require.NoError(t, err)
	assert.Equal(t, "low", got)

	valid = []string{"high", "hot"}
	_, err = normalizeEnum("priority", "h", valid)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "hel...", truncate("hello world", 6))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	// Rune-safe on multibyte input.
	assert.Equal(t, "héllo...", truncate("héllo wörld", 8))
}

func TestShortStatusAndPriority(t *testing.T) {
	assert.Equal(t, "o", shortStatus("open"))
	assert.Equal(t, "i", shortStatus("in_progress"))
	assert.Equal(t, "r", shortStatus("resolved"))
	assert.Equal(t, "c", shortStatus("closed"))
	assert.Equal(t, "weird", shortStatus("weird"))

	assert.Equal(t, "u", shortPriority("urgent"))
	assert.Equal(t, "h", shortPriority("HIGH"))
	assert.Equal(t, "m", shortPriority("medium"))
	assert.Equal(t, "l", shortPriority("low"))
	assert.Equal(t, "", shortPriority(""))
}

func TestParseConversationID(t *testing.T) {
	id, err := parseConversationID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = parseConversationID("#7")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	for _, bad := range []string{"", "abc", "0", "-3", "#"} {
		_, err := parseConversationID(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFlagAliasSharesValue(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var status string
	fs.StringVar(&status, "status", "", "")
	flagAlias(fs, "status", "st")

	require.NoError(t, fs.Parse([]string{"--st", "open"}))

	assert.Equal(t, "open", status)
	assert.True(t, fs.Lookup("status").Changed, "alias should mark canonical flag as changed")

	aliasFlag := fs.Lookup("st")
	require.NotNil(t, aliasFlag)
	assert.True(t, aliasFlag.Hidden)
	assert.Equal(t, []string{"status"}, aliasFlag.Annotations["alias-of"])
}

func TestFlagAliasUnknownCanonical(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagAlias(fs, "nope", "np")
	assert.Nil(t, fs.Lookup("np"))
}

func TestFlagOrAliasChanged(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
		c.Flags().String("priority", "", "")
		flagAlias(c.Flags(), "priority", "pr")
		return c
	}

	c := newCmd()
	c.SetArgs([]string{"--priority", "high"})
	require.NoError(t, c.Execute())
	assert.True(t, flagOrAliasChanged(c, "priority"))

	c = newCmd()
	c.SetArgs([]string{"--pr", "high"})
	require.NoError(t, c.Execute())
	assert.True(t, flagOrAliasChanged(c, "priority"))

	c = newCmd()
	c.SetArgs([]string{})
	require.NoError(t, c.Execute())
	assert.False(t, flagOrAliasChanged(c, "priority"))
}

func TestHandledErrorUnwrapsToSentinel(t *testing.T) {
	cause := errors.New("boom")
	handled := &handledError{err: cause, exitCode: 3}

	assert.Equal(t, "boom", handled.Error())
	assert.Equal(t, 3, handled.ExitCode())
	assert.ErrorIs(t, handled, errAlreadyHandled)
}
