package api

import (
	"context"
	"net/http"
	"net/url"
)

// Query searches conversations and customers for the given text.
func (s SearchService) Query(ctx context.Context, q string) (*SearchResults, error) {
	var result SearchResults
	path := "/search?q=" + url.QueryEscape(q)
	if err := s.do(ctx, http.MethodGet, s.apiPath(path), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
