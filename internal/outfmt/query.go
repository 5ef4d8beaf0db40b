package outfmt

import (
	"context"
	"encoding/json"
	"io"

	"github.com/branchlabs/branch-cli/internal/filter"
)

type queryKey struct{}

// WithQuery stores a jq expression on the context for output filtering.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery returns the jq expression from the context, if any.
func GetQuery(ctx context.Context) string {
	query, _ := ctx.Value(queryKey{}).(string)
	return query
}

// WriteJSONFiltered writes v as JSON, running it through the jq expression
// first when one is given. Output is indented unless compact is set.
func WriteJSONFiltered(w io.Writer, v any, query string, compact bool) error {
	v = normalizeJSONOutput(v)
	if query != "" {
		filtered, err := runQuery(v, query)
		if err != nil {
			return err
		}
		v = filtered
	}
	return WriteJSONMaybeCompact(w, v, compact)
}

// ApplyQuery filters structured data through a jq expression and returns the
// result as generic decoded JSON.
func ApplyQuery(v any, query string) (any, error) {
	v = normalizeJSONOutput(v)
	if query == "" {
		return v, nil
	}
	return runQuery(v, query)
}

// runQuery round-trips v through JSON so gojq sees plain maps and slices.
func runQuery(v any, query string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return filter.ApplyFromJSON(data, query)
}
