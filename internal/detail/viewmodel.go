// Package detail maintains the open-conversation view: full message history,
// optimistic sends, and read/viewing advisories.
package detail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/queue"
)

// ErrSuperseded is returned by Activate when a newer activation replaced it
// before its fetch completed. The stale result is discarded.
var ErrSuperseded = errors.New("activation superseded by a newer one")

// ConversationAPI is the conversation surface the view model needs.
type ConversationAPI interface {
	Get(ctx context.Context, id int) (*api.Conversation, error)
	MarkRead(ctx context.Context, id int) error
}

// MessageSender posts agent replies.
type MessageSender interface {
	Send(ctx context.Context, conversationID, agentID int, content string) (*api.Message, error)
}

// Advisor sends viewing advisories over the event channel. *stream.Conn
// satisfies it. Advisories are best-effort; failures are logged, not fatal.
type Advisor interface {
	SendViewing(ctx context.Context, conversationID int) error
	SendStopViewing(ctx context.Context, conversationID int) error
}

// ViewModel holds the currently open conversation. A generation counter
// guards against out-of-order fetches when the agent switches conversations
// quickly: only the newest activation may publish its result.
type ViewModel struct {
	mu         sync.Mutex
	api        ConversationAPI
	messages   MessageSender
	advisor    Advisor           // may be nil (no live connection)
	queue      *queue.Reconciler // may be nil
	agentID    int
	activeID   int // 0 when no conversation is open
	generation uint64
	conv       *api.Conversation
	msgIDs     map[int]struct{}
	nextTempID int // negative ids for optimistic placeholders
}

// New creates a ViewModel. advisor and q may be nil.
func New(convAPI ConversationAPI, messages MessageSender, advisor Advisor, q *queue.Reconciler, agentID int) *ViewModel {
	return &ViewModel{
		api:      convAPI,
		messages: messages,
		advisor:  advisor,
		queue:    q,
		agentID:  agentID,
		msgIDs:   make(map[int]struct{}),
	}
}

// SetAdvisor swaps the advisory sender, e.g. after a reconnect.
func (vm *ViewModel) SetAdvisor(advisor Advisor) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.advisor = advisor
}

// ActiveID returns the open conversation id, or 0.
func (vm *ViewModel) ActiveID() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.activeID
}

// Messages returns a copy of the active conversation's messages.
func (vm *ViewModel) Messages() []api.Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.conv == nil {
		return nil
	}
	out := make([]api.Message, len(vm.conv.Messages))
	copy(out, vm.conv.Messages)
	return out
}

// Conversation returns a copy of the active conversation, or nil.
func (vm *ViewModel) Conversation() *api.Conversation {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.conv == nil {
		return nil
	}
	c := *vm.conv
	c.Messages = make([]api.Message, len(vm.conv.Messages))
	copy(c.Messages, vm.conv.Messages)
	return &c
}

// Activate opens a conversation: fetch its detail, mark it read, and send a
// viewing advisory. If the agent activates another conversation before the
// fetch returns, the stale result is discarded and ErrSuperseded returned.
func (vm *ViewModel) Activate(ctx context.Context, id int) (*api.Conversation, error) {
	vm.mu.Lock()
	vm.generation++
	gen := vm.generation
	vm.activeID = id
	vm.mu.Unlock()

	conv, err := vm.api.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation %d: %w", id, err)
	}

	vm.mu.Lock()
	if vm.generation != gen {
		vm.mu.Unlock()
		return nil, ErrSuperseded
	}
	vm.conv = conv
	vm.msgIDs = make(map[int]struct{}, len(conv.Messages))
	for _, m := range conv.Messages {
		vm.msgIDs[m.ID] = struct{}{}
	}
	advisor := vm.advisor
	vm.mu.Unlock()

	// Confirm read with the server before clearing the local counter.
	if err := vm.api.MarkRead(ctx, id); err != nil {
		slog.Warn("mark read failed", "conversation_id", id, "error", err)
	} else if vm.queue != nil {
		vm.queue.MarkRead(id)
	}

	if advisor != nil {
		if err := advisor.SendViewing(ctx, id); err != nil {
			slog.Debug("viewing advisory failed", "conversation_id", id, "error", err)
		}
	}

	return vm.Conversation(), nil
}

// Deactivate closes the open conversation and sends a stop_viewing advisory.
func (vm *ViewModel) Deactivate(ctx context.Context) {
	vm.mu.Lock()
	id := vm.activeID
	vm.activeID = 0
	vm.generation++
	vm.conv = nil
	vm.msgIDs = make(map[int]struct{})
	advisor := vm.advisor
	vm.mu.Unlock()

	if id != 0 && advisor != nil {
		if err := advisor.SendStopViewing(ctx, id); err != nil {
			slog.Debug("stop_viewing advisory failed", "conversation_id", id, "error", err)
		}
	}
}

// Append adds a pushed message to the active conversation. Messages for
// other conversations are ignored, and a message id already present (the
// send echo arriving twice: once as the POST response, once as broadcast)
// is dropped. It reports whether the message was added.
func (vm *ViewModel) Append(msg api.Message) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.conv == nil || msg.ConversationID != vm.activeID {
		return false
	}
	if _, seen := vm.msgIDs[msg.ID]; seen {
		return false
	}
	vm.conv.Messages = append(vm.conv.Messages, msg)
	vm.msgIDs[msg.ID] = struct{}{}
	return true
}

// Send posts a reply optimistically: a placeholder with a negative id is
// appended immediately, then replaced by the server's echo. On failure the
// placeholder is removed and the error returned.
func (vm *ViewModel) Send(ctx context.Context, content string) (*api.Message, error) {
	vm.mu.Lock()
	if vm.conv == nil {
		vm.mu.Unlock()
		return nil, errors.New("no active conversation")
	}
	id := vm.activeID
	vm.nextTempID--
	tempID := vm.nextTempID
	agentID := vm.agentID
	placeholder := api.Message{
		ID:             tempID,
		ConversationID: id,
		AgentID:        &agentID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	vm.conv.Messages = append(vm.conv.Messages, placeholder)
	vm.msgIDs[tempID] = struct{}{}
	vm.mu.Unlock()

	sent, err := vm.messages.Send(ctx, id, agentID, content)

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.conv == nil || vm.activeID != id {
		// The view moved on while the send was in flight; nothing to patch.
		if err != nil {
			return nil, err
		}
		return sent, nil
	}

	pos := -1
	for i := range vm.conv.Messages {
		if vm.conv.Messages[i].ID == tempID {
			pos = i
			break
		}
	}

	if err != nil {
		if pos >= 0 {
			vm.conv.Messages = append(vm.conv.Messages[:pos], vm.conv.Messages[pos+1:]...)
		}
		delete(vm.msgIDs, tempID)
		return nil, fmt.Errorf("send message: %w", err)
	}

	delete(vm.msgIDs, tempID)
	if _, seen := vm.msgIDs[sent.ID]; seen {
		// Broadcast echo beat the POST response; drop the placeholder.
		if pos >= 0 {
			vm.conv.Messages = append(vm.conv.Messages[:pos], vm.conv.Messages[pos+1:]...)
		}
		return sent, nil
	}
	if pos >= 0 {
		vm.conv.Messages[pos] = *sent
	} else {
		vm.conv.Messages = append(vm.conv.Messages, *sent)
	}
	vm.msgIDs[sent.ID] = struct{}{}
	return sent, nil
}
