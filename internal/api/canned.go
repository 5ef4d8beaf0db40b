package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// List retrieves canned messages, optionally filtered by category.
func (s CannedMessagesService) List(ctx context.Context, category string) ([]CannedMessage, error) {
	path := "/canned-messages"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var result []CannedMessage
	if err := s.do(ctx, http.MethodGet, s.apiPath(path), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Use records a use of a canned message (bumps its usage counter) and
// returns the updated template.
func (s CannedMessagesService) Use(ctx context.Context, id int) (*CannedMessage, error) {
	var result CannedMessage
	if err := s.do(ctx, http.MethodPost, s.apiPath(fmt.Sprintf("/canned-messages/%d/use", id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
