// Package filter applies jq expressions to command output via gojq.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Apply runs the jq expression against data. A single result is returned
// bare; multiple results come back as a slice. The empty expression is a
// no-op so callers can pass the --jq flag through unconditionally.
func Apply(data interface{}, expression string) (interface{}, error) {
	if expression == "" {
		return data, nil
	}

	expression = NormalizeExpression(expression)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	results, err := evaluate(query, data)
	if err != nil {
		// List output is wrapped as {"items": [...]}, but users write
		// `.[] | ...` expecting the bare array. Retry on the inner array
		// when the failure matches that shape.
		inner, retryable := unwrapItems(data, expression, err)
		if !retryable {
			return nil, err
		}
		if results, err = evaluate(query, inner); err != nil {
			return nil, err
		}
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func evaluate(query *gojq.Query, data interface{}) ([]interface{}, error) {
	var out []interface{}
	iter := query.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		out = append(out, v)
	}
}

func unwrapItems(data interface{}, expression string, runErr error) (interface{}, bool) {
	if !iteratesRoot(expression) {
		return nil, false
	}
	if !strings.Contains(runErr.Error(), "expected an object but got: array") {
		return nil, false
	}
	wrapper, ok := data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	items, ok := wrapper["items"].([]interface{})
	if !ok {
		return nil, false
	}
	return items, true
}

func iteratesRoot(expression string) bool {
	expr := strings.TrimSpace(expression)
	for _, prefix := range []string{".[]", "[.[]", "(.[]"} {
		if strings.HasPrefix(expr, prefix) {
			return true
		}
	}
	return false
}

// ApplyToJSON filters raw JSON bytes and re-marshals the result indented.
func ApplyToJSON(jsonData []byte, expression string) ([]byte, error) {
	if expression == "" {
		return jsonData, nil
	}
	result, err := ApplyFromJSON(jsonData, expression)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}

// ApplyFromJSON filters raw JSON bytes and hands back the Go value for the
// caller to format.
func ApplyFromJSON(jsonData []byte, expression string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression)
}
