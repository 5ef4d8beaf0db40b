// Package outfmt carries the selected output format through context and
// renders JSON for commands that honor --output.
package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Mode selects how command results are rendered.
type Mode int

const (
	// Text renders tables and human-readable lines. Default.
	Text Mode = iota
	// JSON renders a single pretty-printed document.
	JSON
	// JSONL renders one JSON object per line.
	JSONL
)

func (m Mode) String() string {
	switch m {
	case JSON:
		return "json"
	case JSONL:
		return "jsonl"
	}
	return "text"
}

// Parse maps the --output flag value to a Mode. The empty string means Text
// so an unset flag needs no special-casing at call sites.
func Parse(s string) (Mode, error) {
	modes := map[string]Mode{
		"":       Text,
		"text":   Text,
		"json":   JSON,
		"jsonl":  JSONL,
		"ndjson": JSONL,
	}
	m, ok := modes[s]
	if !ok {
		return Text, fmt.Errorf("invalid output format: %q (use 'text', 'json', 'jsonl', or 'ndjson')", s)
	}
	return m, nil
}

type (
	contextKey struct{}
	compactKey struct{}
)

// WithMode stores the output mode in the context.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, contextKey{}, mode)
}

// ModeFromContext returns the stored mode, defaulting to Text.
func ModeFromContext(ctx context.Context) Mode {
	mode, _ := ctx.Value(contextKey{}).(Mode)
	return mode
}

// IsJSON reports whether the context asks for machine-readable output.
func IsJSON(ctx context.Context) bool {
	m := ModeFromContext(ctx)
	return m == JSON || m == JSONL
}

// IsJSONL reports whether newline-delimited output is selected.
func IsJSONL(ctx context.Context) bool {
	return ModeFromContext(ctx) == JSONL
}

// WithCompact stores the compact-output flag in the context.
func WithCompact(ctx context.Context, compact bool) context.Context {
	return context.WithValue(ctx, compactKey{}, compact)
}

// IsCompact reports whether compact (unindented) JSON was requested.
func IsCompact(ctx context.Context) bool {
	c, _ := ctx.Value(compactKey{}).(bool)
	return c
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	return WriteJSONMaybeCompact(w, v, false)
}

// WriteJSONMaybeCompact writes v as JSON, indented unless compact is set.
func WriteJSONMaybeCompact(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
