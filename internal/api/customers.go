package api

import (
	"context"
	"fmt"
	"net/http"
)

// List retrieves all customers.
func (s CustomersService) List(ctx context.Context) ([]Customer, error) {
	var result []Customer
	if err := s.do(ctx, http.MethodGet, s.apiPath("/customers"), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get retrieves a single customer by ID.
func (s CustomersService) Get(ctx context.Context, id int) (*Customer, error) {
	var result Customer
	if err := s.do(ctx, http.MethodGet, s.apiPath(fmt.Sprintf("/customers/%d", id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
