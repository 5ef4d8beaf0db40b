package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/queue"
)

type fakeConvAPI struct {
	assignErr  error
	releaseErr error
	// truth is what Get returns after a rejection
	truth api.Conversation

	assignCalls  int
	releaseCalls int
	getCalls     int
}

func (f *fakeConvAPI) Assign(ctx context.Context, id, agentID int) (*api.ConversationListItem, error) {
	f.assignCalls++
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	item := f.truth.ConversationListItem
	item.AgentID = &agentID
	item.AssignedAgent = &api.Agent{ID: agentID}
	return &item, nil
}

func (f *fakeConvAPI) Release(ctx context.Context, id, agentID int) (*api.ConversationListItem, error) {
	f.releaseCalls++
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	item := f.truth.ConversationListItem
	item.AgentID = nil
	item.AssignedAgent = nil
	return &item, nil
}

func (f *fakeConvAPI) Get(ctx context.Context, id int) (*api.Conversation, error) {
	f.getCalls++
	return &f.truth, nil
}

func newQueue(agentID *int) (*queue.Reconciler, api.ConversationListItem) {
	row := api.ConversationListItem{
		ID:        1,
		Status:    api.StatusOpen,
		Priority:  api.PriorityMedium,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AgentID:   agentID,
	}
	if agentID != nil {
		row.AssignedAgent = &api.Agent{ID: *agentID}
	}
	q := queue.New()
	q.LoadSnapshot([]api.ConversationListItem{row})
	return q, row
}

func TestCanCompose(t *testing.T) {
	seven := 7
	nine := 9
	assert.True(t, CanCompose(nil, 7))
	assert.True(t, CanCompose(&seven, 7))
	assert.False(t, CanCompose(&nine, 7))
}

func TestClaim_Success(t *testing.T) {
	q, row := newQueue(nil)
	fake := &fakeConvAPI{truth: api.Conversation{ConversationListItem: row}}
	c := New(fake, q, 7)

	require.NoError(t, c.Claim(context.Background(), 1))

	got, _ := q.Get(1)
	require.NotNil(t, got.AgentID)
	assert.Equal(t, 7, *got.AgentID)
	assert.Equal(t, 1, fake.assignCalls)
}

func TestClaim_IdempotentReclaim(t *testing.T) {
	self := 7
	q, row := newQueue(&self)
	fake := &fakeConvAPI{truth: api.Conversation{ConversationListItem: row}}
	c := New(fake, q, 7)

	require.NoError(t, c.Claim(context.Background(), 1))
	assert.Equal(t, 0, fake.assignCalls, "re-claiming our own conversation skips the server")
}

func TestClaim_AlreadyAssignedToOther(t *testing.T) {
	other := 9
	q, row := newQueue(&other)
	fake := &fakeConvAPI{truth: api.Conversation{ConversationListItem: row}}
	c := New(fake, q, 7)

	err := c.Claim(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already assigned to agent 9")
	assert.Equal(t, 0, fake.assignCalls)
}

func TestClaim_RejectionRollsBackToServerTruth(t *testing.T) {
	q, row := newQueue(nil)

	// Server says another agent won the race.
	winner := 9
	truth := api.Conversation{ConversationListItem: row}
	truth.AgentID = &winner
	truth.AssignedAgent = &api.Agent{ID: 9, Name: "Bea"}

	fake := &fakeConvAPI{
		assignErr: &api.APIError{StatusCode: 409, Detail: "Conversation already assigned to agent 9"},
		truth:     truth,
	}
	c := New(fake, q, 7)

	err := c.Claim(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already assigned to agent 9")
	assert.Equal(t, 1, fake.getCalls, "rejection triggers a truth re-fetch")

	// Queue ends with the other agent assigned, not us and not unassigned.
	got, _ := q.Get(1)
	require.NotNil(t, got.AgentID)
	assert.Equal(t, 9, *got.AgentID)
	require.NotNil(t, got.AssignedAgent)
	assert.Equal(t, "Bea", got.AssignedAgent.Name)
	assert.False(t, CanCompose(got.AgentID, 7), "compose stays disabled after losing the race")
}

func TestClaim_UnknownConversation(t *testing.T) {
	q := queue.New()
	fake := &fakeConvAPI{}
	c := New(fake, q, 7)

	err := c.Claim(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the queue")
}

func TestRelease_Success(t *testing.T) {
	self := 7
	q, row := newQueue(&self)
	fake := &fakeConvAPI{truth: api.Conversation{ConversationListItem: row}}
	c := New(fake, q, 7)

	require.NoError(t, c.Release(context.Background(), 1))

	got, _ := q.Get(1)
	assert.Nil(t, got.AgentID)
	assert.Nil(t, got.AssignedAgent)
}

func TestRelease_NotAssignee(t *testing.T) {
	other := 9
	q, row := newQueue(&other)
	fake := &fakeConvAPI{truth: api.Conversation{ConversationListItem: row}}
	c := New(fake, q, 7)

	err := c.Release(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not you")
	assert.Equal(t, 0, fake.releaseCalls)
}

func TestRelease_RejectionRollsBack(t *testing.T) {
	self := 7
	q, row := newQueue(&self)

	truth := api.Conversation{ConversationListItem: row} // server says still ours
	fake := &fakeConvAPI{
		releaseErr: &api.APIError{StatusCode: 500, Detail: "internal error"},
		truth:      truth,
	}
	c := New(fake, q, 7)

	err := c.Release(context.Background(), 1)
	require.Error(t, err)

	got, _ := q.Get(1)
	require.NotNil(t, got.AgentID)
	assert.Equal(t, 7, *got.AgentID, "rollback restores server truth after failed release")
}
