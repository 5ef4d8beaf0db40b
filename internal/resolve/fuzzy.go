// Package resolve maps human-entered names to Branch resource IDs so
// commands can accept "claim 42 --agent carol" instead of numeric IDs.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

const ambiguousCandidateCap = 5

// Named is the minimal shape the resolver needs from a resource.
type Named struct {
	ID   int
	Name string
}

// Match pairs a candidate with its fuzzy score.
type Match struct {
	ID    int
	Name  string
	Score int
}

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrEmptyItems = errors.New("no items to match against")
)

// AmbiguousError is returned when the query cannot pick a single winner.
// Matches holds the tied candidates, best first.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	msg := fmt.Sprintf("ambiguous match for %q", e.Query)
	if len(e.Matches) == 0 {
		return msg
	}
	lines := make([]string, 0, len(e.Matches)+1)
	lines = append(lines, msg+", candidates:")
	for _, m := range e.Matches {
		lines = append(lines, fmt.Sprintf("  %d: %s", m.ID, m.Name))
	}
	return strings.Join(lines, "\n")
}

// lowerNames adapts a Named slice to fuzzy.Source, folding case so the
// library's matching is effectively case-insensitive.
type lowerNames []Named

func (l lowerNames) Len() int            { return len(l) }
func (l lowerNames) String(i int) string { return strings.ToLower(l[i].Name) }

func rank(query string, items []Named) fuzzy.Matches {
	return fuzzy.FindFrom(strings.ToLower(query), lowerNames(items))
}

// FuzzyMatch resolves query to exactly one item's ID. An exact
// case-insensitive name match always wins; otherwise the best fuzzy
// result is taken, unless the top two scores tie, which yields an
// *AmbiguousError so the caller can ask the user to be more specific.
func FuzzyMatch(query string, items []Named) (int, error) {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return 0, ErrEmptyQuery
	case len(items) == 0:
		return 0, ErrEmptyItems
	}

	for _, it := range items {
		if strings.EqualFold(it.Name, query) {
			return it.ID, nil
		}
	}

	ranked := rank(query, items)
	switch {
	case len(ranked) == 0:
		return 0, fmt.Errorf("no match found for %q", query)
	case len(ranked) > 1 && ranked[0].Score == ranked[1].Score:
		return 0, &AmbiguousError{
			Query:   query,
			Matches: toMatches(items, ranked, ambiguousCandidateCap),
		}
	}
	return items[ranked[0].Index].ID, nil
}

// FuzzyMatchAll ranks every candidate against query and returns at most
// limit results, best first. Used for "did you mean" style listings.
func FuzzyMatchAll(query string, items []Named, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 || limit <= 0 {
		return nil
	}
	return toMatches(items, rank(query, items), limit)
}

func toMatches(items []Named, ranked fuzzy.Matches, limit int) []Match {
	if limit <= 0 {
		return nil
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]Match, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, Match{ID: items[r.Index].ID, Name: items[r.Index].Name, Score: r.Score})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
