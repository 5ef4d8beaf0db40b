package api

import (
	"strings"
	"time"
)

// Conversation status values.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Conversation priority values.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// PriorityRank maps a priority to its sort weight. Unknown values rank below low.
func PriorityRank(priority string) int {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Customer is a person writing in from an external channel.
type Customer struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Agent is a support agent account.
type Agent struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"` // online, away, offline
}

// Message is a single message within a conversation.
type Message struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"conversation_id"`
	CustomerID     int       `json:"customer_id,omitempty"`
	AgentID        *int      `json:"agent_id,omitempty"`
	Content        string    `json:"content"`
	IsFromCustomer bool      `json:"is_from_customer"`
	Priority       string    `json:"priority,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagePreview is the truncated last-message summary carried on list items.
type MessagePreview struct {
	Content        string    `json:"content"`
	IsFromCustomer bool      `json:"is_from_customer"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// ConversationListItem is the queue-row shape returned by the list endpoint.
// AgentID is nil when the conversation is unassigned; AssignedAgent mirrors it.
type ConversationListItem struct {
	ID            int             `json:"id"`
	CustomerID    int             `json:"customer_id"`
	AgentID       *int            `json:"agent_id"`
	Status        string          `json:"status"`
	Priority      string          `json:"priority"`
	Subject       string          `json:"subject,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Customer      *Customer       `json:"customer,omitempty"`
	AssignedAgent *Agent          `json:"assigned_agent,omitempty"`
	LastMessage   *MessagePreview `json:"last_message,omitempty"`
	UnreadCount   int             `json:"unread_count"`
}

// Conversation is the full detail shape, list-item fields plus message history.
type Conversation struct {
	ConversationListItem
	Messages []Message `json:"messages"`
}

// ConversationStats summarizes the queue for the dashboard header.
type ConversationStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	Unassigned int            `json:"unassigned"`
}

// CannedMessage is a reusable reply template.
type CannedMessage struct {
	ID         int    `json:"id"`
	Shortcut   string `json:"shortcut"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	UsageCount int    `json:"usage_count"`
}

// SearchResults groups matches across resource types.
type SearchResults struct {
	Query         string                 `json:"query"`
	Conversations []ConversationListItem `json:"conversations"`
	Customers     []Customer             `json:"customers"`
	Suggestions   []string               `json:"suggestions,omitempty"`
}
