package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationsListCommand(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/conversations", jsonResponse(200, `[
			{"id": 1, "customer_id": 3, "agent_id": null, "status": "open", "priority": "urgent",
			 "created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:05:00Z",
			 "unread_count": 2,
			 "last_message": {"content": "my payment failed", "is_from_customer": true}},
			{"id": 2, "customer_id": 4, "agent_id": 7, "status": "in_progress", "priority": "low",
			 "created_at": "2026-08-30T09:00:00Z", "updated_at": "2026-08-30T09:30:00Z",
			 "unread_count": 0,
			 "assigned_agent": {"id": 7, "name": "Dana"}}
		]`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "list"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "PRIORITY")
	assert.Contains(t, output, "urgent")
	assert.Contains(t, output, "my payment failed")
	assert.Contains(t, output, "Dana")
}

func TestConversationsListCommand_JSON(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/conversations", jsonResponse(200, `[
			{"id": 9, "customer_id": 3, "agent_id": null, "status": "open", "priority": "high",
			 "created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:05:00Z", "unread_count": 1}
		]`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "list", "--output", "json"})
		require.NoError(t, err)
	})

	items := decodeItems(t, output)
	require.Len(t, items, 1)
	assert.Equal(t, float64(9), items[0]["id"])
	assert.Equal(t, "high", items[0]["priority"])
}

func TestConversationsListCommand_StatusFilter(t *testing.T) {
	var gotQuery string
	handler := newRouteHandler().
		On("GET", "/api/conversations", func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			jsonResponse(200, `[]`)(w, r)
		})
	setupTestEnv(t, handler)

	_ = captureStdout(t, func() {
		// Prefix form of the enum is accepted.
		err := Execute(context.Background(), []string{"conversations", "list", "--status", "re"})
		require.NoError(t, err)
	})

	assert.Equal(t, "status=resolved", gotQuery)
}

func TestConversationsListCommand_InvalidStatus(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err = Execute(context.Background(), []string{"conversations", "list", "--status", "bogus"})
		})
	})

	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
}

func TestConversationsGetCommand(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/conversations/42", jsonResponse(200, `{
			"id": 42, "customer_id": 3, "agent_id": 7, "status": "open", "priority": "high",
			"subject": "Refund request",
			"created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:05:00Z",
			"unread_count": 0,
			"customer": {"id": 3, "name": "Alex Smith", "email": "alex@example.com"},
			"assigned_agent": {"id": 7, "name": "Dana"},
			"messages": [
				{"id": 1, "conversation_id": 42, "content": "Where is my refund?",
				 "is_from_customer": true, "created_at": "2026-08-30T10:00:00Z"},
				{"id": 2, "conversation_id": 42, "agent_id": 7, "content": "Looking into it now.",
				 "is_from_customer": false, "created_at": "2026-08-30T10:02:00Z"}
			]
		}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "get", "#42"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Refund request")
	assert.Contains(t, output, "Alex Smith")
	assert.Contains(t, output, "Where is my refund?")
	assert.Contains(t, output, "Looking into it now.")
}

func TestConversationsUpdateCommand(t *testing.T) {
	var gotBody map[string]any
	handler := newRouteHandler().
		On("PATCH", "/api/conversations/5", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			jsonResponse(200, `{"id": 5, "customer_id": 1, "agent_id": 7, "status": "resolved",
				"priority": "high", "created_at": "2026-08-30T10:00:00Z",
				"updated_at": "2026-08-30T11:00:00Z", "unread_count": 0}`)(w, r)
		})
	setupTestEnv(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "update", "5", "--status", "resolved"})
		require.NoError(t, err)
	})

	require.NotNil(t, gotBody)
	assert.Equal(t, "resolved", gotBody["status"])
	_, hasPriority := gotBody["priority"]
	assert.False(t, hasPriority, "unset fields must be omitted from the partial update")
}

func TestClaimCommand(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/conversations/5/assign/7", jsonResponse(200, `{
			"id": 5, "customer_id": 1, "agent_id": 7, "status": "in_progress", "priority": "high",
			"created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T11:00:00Z",
			"unread_count": 0, "assigned_agent": {"id": 7, "name": "Dana"}
		}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"claim", "5"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Dana")
}

func TestClaimCommand_Conflict(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/conversations/5/assign/7",
			jsonResponse(409, `{"detail": "conversation already assigned to agent 3"}`))
	setupTestEnv(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err = Execute(context.Background(), []string{"claim", "5"})
		})
	})

	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
	assert.Contains(t, stderr, "already assigned")
}

func TestClaimCommand_Bulk(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/conversations/1/assign/7", jsonResponse(200, `{
			"id": 1, "customer_id": 1, "agent_id": 7, "status": "in_progress", "priority": "high",
			"created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T11:00:00Z",
			"unread_count": 0, "assigned_agent": {"id": 7, "name": "Dana"}
		}`)).
		On("POST", "/api/conversations/2/assign/7",
			jsonResponse(409, `{"detail": "conversation already assigned to agent 3"}`))
	setupTestEnv(t, handler)

	var err error
	output := captureStdout(t, func() {
		_ = captureStderr(t, func() {
			err = Execute(context.Background(), []string{"claim", "1", "2"})
		})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 claims failed")
	assert.Contains(t, output, "Conversation 1 claimed by Dana")
	assert.Contains(t, output, "Conversation 2 failed")
}

func TestReplyCommand(t *testing.T) {
	var gotBody map[string]any
	handler := newRouteHandler().
		On("POST", "/api/conversations/12/messages", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			jsonResponse(201, `{"id": 100, "conversation_id": 12, "agent_id": 7,
				"content": "On it!", "is_from_customer": false,
				"created_at": "2026-08-30T10:00:00Z"}`)(w, r)
		})
	setupTestEnv(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"reply", "12", "On it!"})
		require.NoError(t, err)
	})

	require.NotNil(t, gotBody)
	assert.Equal(t, "On it!", gotBody["content"])
	assert.Equal(t, float64(7), gotBody["agent_id"])
}

func TestSearchCommand(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/search", jsonResponse(200, `{
			"query": "refund",
			"conversations": [
				{"id": 42, "customer_id": 3, "agent_id": null, "status": "open", "priority": "high",
				 "created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:05:00Z",
				 "unread_count": 0, "last_message": {"content": "refund please"}}
			],
			"customers": [{"id": 3, "name": "Alex Smith", "email": "alex@example.com"}]
		}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"search", "refund"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "#42")
	assert.Contains(t, output, "Alex Smith")
}

func TestUnknownCommandSuggestion(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"conversatons"})
	})

	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
	assert.Contains(t, stderr, `Did you mean "conversations"?`)
}

func TestUnknownFlagSuggestion(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"conversations", "list", "--staus", "open"})
	})

	require.Error(t, err)
	assert.Contains(t, stderr, "--status")
}

func TestJSONFlagConflictsWithOutput(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"conversations", "list", "--json", "--output", "text"})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--json conflicts with --output")
}

func TestQueryImpliesJSONOutput(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/conversations", jsonResponse(200, `[
			{"id": 1, "customer_id": 3, "agent_id": null, "status": "open", "priority": "urgent",
			 "created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:05:00Z", "unread_count": 0}
		]`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "list", "--jq", ".items[0].priority"})
		require.NoError(t, err)
	})

	assert.Equal(t, `"urgent"`, strings.TrimSpace(output))
}

func TestVersionCommand(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"version"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "branch-cli version dev")
}

func TestStatsCommand(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/conversations/stats", jsonResponse(200, `{
			"total": 12, "unassigned": 4,
			"by_status": {"open": 5, "in_progress": 3, "resolved": 2, "closed": 2},
			"by_priority": {"urgent": 1, "high": 4, "medium": 5, "low": 2}
		}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"conversations", "stats"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "12")
	assert.Contains(t, output, "open")
	assert.Contains(t, output, "urgent")
}

func TestSimulateCommand(t *testing.T) {
	var gotBody map[string]any
	handler := newRouteHandler().
		On("POST", "/api/external/messages", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			jsonResponse(201, `{"id": 55, "conversation_id": 8, "customer_id": 3,
				"content": "site is down!!!", "is_from_customer": true, "priority": "urgent",
				"created_at": "2026-08-30T10:00:00Z"}`)(w, r)
		})
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"simulate", "3", "site is down!!!"})
		require.NoError(t, err)
	})

	require.NotNil(t, gotBody)
	assert.Equal(t, float64(3), gotBody["customer_id"])
	assert.Contains(t, output, "conversation 8")
	assert.Contains(t, output, "urgent")
}
