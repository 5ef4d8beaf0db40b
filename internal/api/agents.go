package api

import (
	"context"
	"fmt"
	"net/http"
)

// List retrieves all support agents.
func (s AgentsService) List(ctx context.Context) ([]Agent, error) {
	var result []Agent
	if err := s.do(ctx, http.MethodGet, s.apiPath("/agents"), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get retrieves a single agent by ID.
func (s AgentsService) Get(ctx context.Context, id int) (*Agent, error) {
	var result Agent
	if err := s.do(ctx, http.MethodGet, s.apiPath(fmt.Sprintf("/agents/%d", id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
