// Package assign implements optimistic claim/release of conversations with
// rollback to server truth on rejection.
package assign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/queue"
)

// ConversationAPI is the slice of the conversations service the controller
// needs. *api.Client's ConversationsService satisfies it.
type ConversationAPI interface {
	Assign(ctx context.Context, id, agentID int) (*api.ConversationListItem, error)
	Release(ctx context.Context, id, agentID int) (*api.ConversationListItem, error)
	Get(ctx context.Context, id int) (*api.Conversation, error)
}

// Controller coordinates assignment changes between the local queue and the
// server. Local state is updated optimistically; a server rejection triggers
// a re-fetch of that conversation so the queue reflects authoritative truth
// rather than a guess.
type Controller struct {
	api     ConversationAPI
	queue   *queue.Reconciler
	agentID int
}

// New creates a Controller for the given agent.
func New(convAPI ConversationAPI, q *queue.Reconciler, agentID int) *Controller {
	return &Controller{api: convAPI, queue: q, agentID: agentID}
}

// CanCompose reports whether an agent may send messages into a conversation:
// it must be unassigned or assigned to that agent. Derived, never stored.
func CanCompose(assignedID *int, agentID int) bool {
	return assignedID == nil || *assignedID == agentID
}

// Claim assigns the conversation to this controller's agent.
//
// The queue row is updated optimistically before the server call. If the
// server rejects the claim (typically because another agent won the race),
// the conversation is re-fetched and the queue rolled back to the server's
// answer, and the server's reason is returned.
func (c *Controller) Claim(ctx context.Context, id int) error {
	row, ok := c.queue.Get(id)
	if !ok {
		return fmt.Errorf("conversation %d is not in the queue", id)
	}
	if !CanCompose(row.AgentID, c.agentID) {
		return fmt.Errorf("conversation %d is already assigned to agent %d", id, *row.AgentID)
	}
	if row.AgentID != nil && *row.AgentID == c.agentID {
		return nil // already ours, idempotent
	}

	agentID := c.agentID
	c.queue.SetAssignment(id, &agentID, nil)

	updated, err := c.api.Assign(ctx, id, c.agentID)
	if err != nil {
		c.rollback(ctx, id)
		return fmt.Errorf("claim conversation %d: %w", id, err)
	}

	c.queue.SetAssignment(id, updated.AgentID, updated.AssignedAgent)
	return nil
}

// Release relinquishes this agent's claim on the conversation. Only the
// current assignee may release; the same optimistic/rollback shape as Claim.
func (c *Controller) Release(ctx context.Context, id int) error {
	row, ok := c.queue.Get(id)
	if !ok {
		return fmt.Errorf("conversation %d is not in the queue", id)
	}
	if row.AgentID == nil {
		return nil // already unassigned, idempotent
	}
	if *row.AgentID != c.agentID {
		return fmt.Errorf("conversation %d is assigned to agent %d, not you", id, *row.AgentID)
	}

	c.queue.SetAssignment(id, nil, nil)

	updated, err := c.api.Release(ctx, id, c.agentID)
	if err != nil {
		c.rollback(ctx, id)
		return fmt.Errorf("release conversation %d: %w", id, err)
	}

	c.queue.SetAssignment(id, updated.AgentID, updated.AssignedAgent)
	return nil
}

// rollback replaces the optimistic assignment with the server's current
// truth. A failed re-fetch leaves the optimistic value in place; the next
// snapshot corrects it.
func (c *Controller) rollback(ctx context.Context, id int) {
	conv, err := c.api.Get(ctx, id)
	if err != nil {
		slog.Warn("assignment rollback fetch failed", "conversation_id", id, "error", err)
		return
	}
	c.queue.SetAssignment(id, conv.AgentID, conv.AssignedAgent)
}
