package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/branchlabs/branch-cli/internal/api"
)

// NewMessageEvent is the payload of a new_message frame. The server
// broadcasts the message fields flat, not wrapped in a message object.
type NewMessageEvent struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"conversation_id"`
	CustomerID     int       `json:"customer_id"`
	AgentID        *int      `json:"agent_id"`
	Content        string    `json:"content"`
	IsFromCustomer bool      `json:"is_from_customer"`
	Priority       string    `json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message converts the event into the REST message shape.
func (e *NewMessageEvent) Message() api.Message {
	return api.Message{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		CustomerID:     e.CustomerID,
		AgentID:        e.AgentID,
		Content:        e.Content,
		IsFromCustomer: e.IsFromCustomer,
		Priority:       e.Priority,
		CreatedAt:      e.CreatedAt,
	}
}

// NewConversationEvent is the payload of a new_conversation frame: the new
// conversation's fields flat, with the customer denormalized into
// customer_name and customer_email. The frame carries no timestamps.
type NewConversationEvent struct {
	ID            int    `json:"id"`
	CustomerID    int    `json:"customer_id"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	Subject       string `json:"subject"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

// ListItem builds a queue row from the event. Timestamps are stamped at
// receipt and the row starts with one unread message; the next snapshot
// replaces both with server truth.
func (e *NewConversationEvent) ListItem() api.ConversationListItem {
	now := time.Now().UTC()
	return api.ConversationListItem{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		Status:     e.Status,
		Priority:   e.Priority,
		Subject:    e.Subject,
		CreatedAt:  now,
		UpdatedAt:  now,
		Customer: &api.Customer{
			ID:    e.CustomerID,
			Name:  e.CustomerName,
			Email: e.CustomerEmail,
		},
		UnreadCount: 1,
	}
}

// ConversationUpdateEvent is the payload of a conversation_update frame,
// keyed by id. It is a partial update: pointer fields left nil were absent
// from the wire and mean "unchanged". AgentID keeps the raw JSON so that an
// absent key (unchanged) can be told apart from an explicit null
// (unassigned); agent_name rides along flat when an agent is assigned.
type ConversationUpdateEvent struct {
	ID        int             `json:"id"`
	Status    *string         `json:"status"`
	Priority  *string         `json:"priority"`
	AgentID   json.RawMessage `json:"agent_id"`
	AgentName *string         `json:"agent_name"`
}

var jsonNull = []byte("null")

// AgentChange reports whether the event carries an assignment change.
// changed is false when the agent_id key was absent. A present null means
// the conversation was unassigned (id returns nil).
func (e *ConversationUpdateEvent) AgentChange() (changed bool, id *int, err error) {
	if len(e.AgentID) == 0 {
		return false, nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(e.AgentID), jsonNull) {
		return true, nil, nil
	}
	var v int
	if err := json.Unmarshal(e.AgentID, &v); err != nil {
		return false, nil, fmt.Errorf("parse agent_id: %w", err)
	}
	return true, &v, nil
}

// DecodeNewMessage parses a new_message frame payload.
func DecodeNewMessage(data json.RawMessage) (*NewMessageEvent, error) {
	var ev NewMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode new_message: %w", err)
	}
	return &ev, nil
}

// DecodeNewConversation parses a new_conversation frame payload.
func DecodeNewConversation(data json.RawMessage) (*NewConversationEvent, error) {
	var ev NewConversationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode new_conversation: %w", err)
	}
	return &ev, nil
}

// DecodeConversationUpdate parses a conversation_update frame payload.
func DecodeConversationUpdate(data json.RawMessage) (*ConversationUpdateEvent, error) {
	var ev ConversationUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode conversation_update: %w", err)
	}
	return &ev, nil
}
