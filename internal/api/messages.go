package api

import (
	"context"
	"fmt"
	"net/http"
)

// SendMessageRequest is the body for posting an agent reply.
type SendMessageRequest struct {
	AgentID int    `json:"agent_id"`
	Content string `json:"content"`
}

// ExternalMessageRequest simulates an inbound customer message.
type ExternalMessageRequest struct {
	CustomerID int    `json:"customer_id"`
	Content    string `json:"content"`
}

// List retrieves the ordered message history for a conversation.
func (s MessagesService) List(ctx context.Context, conversationID int) ([]Message, error) {
	var result []Message
	if err := s.do(ctx, http.MethodGet, s.apiPath(fmt.Sprintf("/conversations/%d/messages", conversationID)), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Send posts an agent reply to a conversation and returns the created message.
func (s MessagesService) Send(ctx context.Context, conversationID, agentID int, content string) (*Message, error) {
	req := SendMessageRequest{AgentID: agentID, Content: content}
	var result Message
	if err := s.do(ctx, http.MethodPost, s.apiPath(fmt.Sprintf("/conversations/%d/messages", conversationID)), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendCustomerMessage injects a customer-authored message through the external
// channel endpoint. A new conversation is created when the customer has no open
// one; the created message carries the server-detected priority.
func (s ExternalService) SendCustomerMessage(ctx context.Context, customerID int, content string) (*Message, error) {
	req := ExternalMessageRequest{CustomerID: customerID, Content: content}
	var result Message
	if err := s.do(ctx, http.MethodPost, s.apiPath("/external/messages"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
