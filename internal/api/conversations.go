package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListConversationsParams defines filters for listing conversations.
type ListConversationsParams struct {
	Status   string
	Priority string
}

// buildConversationQuery builds query parameters for the conversation list endpoint.
func buildConversationQuery(params ListConversationsParams) url.Values {
	query := url.Values{}

	if params.Status != "" && params.Status != "all" {
		query.Set("status", params.Status)
	}
	if params.Priority != "" && params.Priority != "all" {
		query.Set("priority", params.Priority)
	}

	return query
}

// UpdateConversationRequest is a partial update: nil fields are left unchanged.
type UpdateConversationRequest struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

// List retrieves conversations filtered by params, ordered by the server's
// priority-then-recency key.
func (s ConversationsService) List(ctx context.Context, params ListConversationsParams) ([]ConversationListItem, error) {
	return listConversations(ctx, s, params)
}

func listConversations(ctx context.Context, r Requester, params ListConversationsParams) ([]ConversationListItem, error) {
	path := "/conversations"
	query := buildConversationQuery(params)

	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result []ConversationListItem
	if err := r.do(ctx, http.MethodGet, r.apiPath(path), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get retrieves a specific conversation with its full message history.
func (s ConversationsService) Get(ctx context.Context, id int) (*Conversation, error) {
	return getConversation(ctx, s, id)
}

func getConversation(ctx context.Context, r Requester, id int) (*Conversation, error) {
	var result Conversation
	if err := r.do(ctx, http.MethodGet, r.apiPath(fmt.Sprintf("/conversations/%d", id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats retrieves aggregate queue counts.
func (s ConversationsService) Stats(ctx context.Context) (*ConversationStats, error) {
	var result ConversationStats
	if err := s.do(ctx, http.MethodGet, s.apiPath("/conversations/stats"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkRead resets the unread counter for a conversation.
func (s ConversationsService) MarkRead(ctx context.Context, id int) error {
	return s.do(ctx, http.MethodPost, s.apiPath(fmt.Sprintf("/conversations/%d/read", id)), nil, nil)
}

// Update applies a partial status/priority update and returns the new state.
func (s ConversationsService) Update(ctx context.Context, id int, req UpdateConversationRequest) (*ConversationListItem, error) {
	var result ConversationListItem
	if err := s.do(ctx, http.MethodPatch, s.apiPath(fmt.Sprintf("/conversations/%d", id)), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Assign claims a conversation for an agent. The server rejects the claim
// when another agent already holds the conversation.
func (s ConversationsService) Assign(ctx context.Context, id, agentID int) (*ConversationListItem, error) {
	var result ConversationListItem
	if err := s.do(ctx, http.MethodPost, s.apiPath(fmt.Sprintf("/conversations/%d/assign/%d", id, agentID)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Release relinquishes an agent's claim on a conversation. Only the current
// assignee may release.
func (s ConversationsService) Release(ctx context.Context, id, agentID int) (*ConversationListItem, error) {
	var result ConversationListItem
	path := fmt.Sprintf("/conversations/%d/release?agent_id=%d", id, agentID)
	if err := s.do(ctx, http.MethodPost, s.apiPath(path), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
