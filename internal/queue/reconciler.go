// Package queue maintains the ordered conversation queue and reconciles
// push events against it.
package queue

import (
	"sort"
	"sync"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/stream"
)

// Outcome reports what a reconciliation step did with an event.
type Outcome int

const (
	// Applied means the event mutated the queue.
	Applied Outcome = iota
	// IgnoredUnknownID means the event referenced a conversation not in the
	// queue; the next snapshot will pick it up.
	IgnoredUnknownID
	// IgnoredDuplicate means the event tried to insert a conversation that
	// already exists; the existing entry wins.
	IgnoredDuplicate
	// IgnoredMalformed means the event matched a queue row but carried an
	// unparseable field; the row was left untouched.
	IgnoredMalformed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case IgnoredUnknownID:
		return "ignored_unknown_id"
	case IgnoredDuplicate:
		return "ignored_duplicate"
	case IgnoredMalformed:
		return "ignored_malformed"
	default:
		return "unknown"
	}
}

// Reconciler owns the ordered conversation list. All mutations funnel
// through the single resort path so the ordering invariant holds after
// every operation.
type Reconciler struct {
	mu    sync.Mutex
	items []api.ConversationListItem
	index map[int]int // conversation id -> position in items
}

// New returns an empty reconciler.
func New() *Reconciler {
	return &Reconciler{index: make(map[int]int)}
}

// LoadSnapshot replaces the queue wholesale with an authoritative listing.
func (r *Reconciler) LoadSnapshot(items []api.ConversationListItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]api.ConversationListItem, len(items))
	copy(r.items, items)
	r.resort()
}

// ApplyNewMessage folds a new_message event into the queue row: bump
// updated_at, refresh the last-message preview, and count unread only for
// customer-authored messages.
func (r *Reconciler) ApplyNewMessage(ev *stream.NewMessageEvent) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[ev.ConversationID]
	if !ok {
		return IgnoredUnknownID
	}

	item := &r.items[pos]
	if ev.CreatedAt.After(item.UpdatedAt) {
		item.UpdatedAt = ev.CreatedAt
	}
	item.LastMessage = &api.MessagePreview{
		Content:        ev.Content,
		IsFromCustomer: ev.IsFromCustomer,
		CreatedAt:      ev.CreatedAt,
	}
	if ev.IsFromCustomer {
		item.UnreadCount++
	}

	r.resort()
	return Applied
}

// ApplyUpdate folds a partial conversation_update into the queue row.
// Absent fields are unchanged; an explicit null agent_id unassigns.
// agent_id and assigned_agent are set and cleared together.
func (r *Reconciler) ApplyUpdate(ev *stream.ConversationUpdateEvent) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[ev.ID]
	if !ok {
		return IgnoredUnknownID, nil
	}

	changed, agentID, err := ev.AgentChange()
	if err != nil {
		return IgnoredMalformed, err
	}

	item := &r.items[pos]
	if ev.Status != nil {
		item.Status = *ev.Status
	}
	if ev.Priority != nil {
		item.Priority = *ev.Priority
	}
	if changed {
		item.AgentID = agentID
		if agentID == nil {
			item.AssignedAgent = nil
		} else {
			agent := &api.Agent{ID: *agentID}
			if ev.AgentName != nil {
				agent.Name = *ev.AgentName
			}
			item.AssignedAgent = agent
		}
	}

	r.resort()
	return Applied, nil
}

// ApplyNewConversation inserts a conversation pushed by the server. A
// duplicate id is ignored; the existing entry wins until the next snapshot.
func (r *Reconciler) ApplyNewConversation(ev *stream.NewConversationEvent) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[ev.ID]; ok {
		return IgnoredDuplicate
	}

	r.items = append(r.items, ev.ListItem())

	r.resort()
	return Applied
}

// SetAssignment sets or clears a conversation's assignee locally. Used for
// optimistic claim/release and for rollback to server truth. It reports
// whether the conversation was present.
func (r *Reconciler) SetAssignment(id int, agentID *int, agent *api.Agent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return false
	}

	item := &r.items[pos]
	item.AgentID = agentID
	if agentID == nil {
		item.AssignedAgent = nil
	} else if agent != nil {
		item.AssignedAgent = agent
	} else {
		item.AssignedAgent = &api.Agent{ID: *agentID}
	}

	r.resort()
	return true
}

// MarkRead resets the unread counter for one conversation. It reports
// whether the conversation was present.
func (r *Reconciler) MarkRead(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return false
	}
	r.items[pos].UnreadCount = 0
	return true
}

// Items returns a copy of the ordered queue.
func (r *Reconciler) Items() []api.ConversationListItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]api.ConversationListItem, len(r.items))
	copy(out, r.items)
	return out
}

// Get returns a copy of one queue row by conversation id.
func (r *Reconciler) Get(id int) (api.ConversationListItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return api.ConversationListItem{}, false
	}
	return r.items[pos], true
}

// Len returns the number of conversations in the queue.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// resort re-sorts the queue by (priority rank desc, updated_at desc, id asc)
// and rebuilds the id index. Callers must hold r.mu.
func (r *Reconciler) resort() {
	sort.Slice(r.items, func(i, j int) bool {
		a, b := &r.items[i], &r.items[j]
		ra, rb := api.PriorityRank(a.Priority), api.PriorityRank(b.Priority)
		if ra != rb {
			return ra > rb
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	r.index = make(map[int]int, len(r.items))
	for i := range r.items {
		r.index[r.items[i].ID] = i
	}
}
