package foundry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat/internal/agentsvc"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := New(Options{Endpoint: srv.URL + "/api/projects/demo/", PageSize: 2})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Endpoint: "not a url"})
	assert.Error(t, err)
}

func TestCreateAndGetThread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects/demo/threads", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "thread_1", "object": "thread", "created_at": 1700000000})
	})
	mux.HandleFunc("GET /api/projects/demo/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "thread_1" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "not_found", "message": "No thread found"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "thread_1", "created_at": 1700000000})
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	thread, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", thread.ID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), thread.CreatedAt)

	got, err := client.GetThread(ctx, "thread_1")
	require.NoError(t, err)
	assert.Equal(t, "thread_1", got.ID)

	_, err = client.GetThread(ctx, "thread_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentsvc.ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "No thread found", apiErr.Message)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/demo/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	})
	client := newTestClient(t, mux)

	_, err := client.GetThread(context.Background(), "thread_1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, agentsvc.ErrNotFound))
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestListMessagesFollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/demo/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "asc", r.URL.Query().Get("order"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("after") {
		case "":
			writeJSON(w, http.StatusOK, map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"id": "msg_1", "thread_id": "thread_1", "role": "user", "created_at": 100,
						"content": []map[string]any{{"type": "text", "text": map[string]any{"value": "hi"}}}},
					{"id": "msg_2", "thread_id": "thread_1", "role": "assistant", "created_at": 101,
						"content": []map[string]any{
							{"type": "image_file"},
							{"type": "text", "text": map[string]any{"value": "hello"}},
						}},
				},
				"last_id":  "msg_2",
				"has_more": true,
			})
		case "msg_2":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{"id": "msg_3", "thread_id": "thread_1", "role": "user", "created_at": 102,
						"content": []map[string]any{{"type": "text", "text": map[string]any{"value": "bye"}}}},
				},
				"last_id":  "msg_3",
				"has_more": false,
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	})
	client := newTestClient(t, mux)

	messages, err := client.ListMessages(context.Background(), "thread_1", agentsvc.OrderAscending)
	require.NoError(t, err)

	want := []agentsvc.Message{
		{ID: "msg_1", ThreadID: "thread_1", Role: agentsvc.RoleUser, CreatedAt: time.Unix(100, 0).UTC(),
			Content: []agentsvc.ContentItem{{Type: "text", Text: "hi"}}},
		{ID: "msg_2", ThreadID: "thread_1", Role: agentsvc.RoleAssistant, CreatedAt: time.Unix(101, 0).UTC(),
			Content: []agentsvc.ContentItem{{Type: "image_file"}, {Type: "text", Text: "hello"}}},
		{ID: "msg_3", ThreadID: "thread_1", Role: agentsvc.RoleUser, CreatedAt: time.Unix(102, 0).UTC(),
			Content: []agentsvc.ContentItem{{Type: "text", Text: "bye"}}},
	}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLifecycleRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects/demo/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req createMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user", req.Role)
		assert.Equal(t, "hi", req.Content)
		writeJSON(w, http.StatusOK, map[string]any{"id": "msg_1", "thread_id": r.PathValue("id"), "role": "user",
			"content": []map[string]any{{"type": "text", "text": map[string]any{"value": req.Content}}}})
	})
	mux.HandleFunc("POST /api/projects/demo/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		var req createRunRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "asst_1", req.AssistantID)
		assert.Equal(t, []agentsvc.MCPToolResource{{ServerLabel: "contoso_store"}}, req.ToolResources.MCP)
		writeJSON(w, http.StatusOK, map[string]any{"id": "run_1", "thread_id": r.PathValue("id"), "assistant_id": "asst_1", "status": "queued"})
	})
	mux.HandleFunc("GET /api/projects/demo/threads/{id}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": r.PathValue("run"), "thread_id": r.PathValue("id"), "assistant_id": "asst_1",
			"status": "requires_action",
			"required_action": map[string]any{
				"type": "submit_tool_approval",
				"submit_tool_approval": map[string]any{"tool_calls": []map[string]any{
					{"id": "call_1", "type": "mcp", "name": "get_available_bikes", "server_label": "contoso_store", "arguments": "{}"},
					{"id": "call_2", "type": "mcp", "name": "get_bike_by_id", "server_label": "contoso_store", "arguments": `{"bikeId":3}`},
				}},
			},
		})
	})
	mux.HandleFunc("POST /api/projects/demo/threads/{id}/runs/{run}/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		var req submitToolApprovalsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []toolApprovalObject{{ToolCallID: "call_1", Approve: true}, {ToolCallID: "call_2", Approve: false}}, req.ToolApprovals)
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("run"), "thread_id": r.PathValue("id"), "status": "in_progress"})
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	msg, err := client.CreateMessage(ctx, "thread_1", agentsvc.RoleUser, "hi")
	require.NoError(t, err)
	assert.Equal(t, "thread_1", msg.ThreadID)

	run, err := client.CreateRun(ctx, "thread_1", "asst_1", agentsvc.ToolResources{
		MCP: []agentsvc.MCPToolResource{{ServerLabel: "contoso_store"}},
	})
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunQueued, run.Status)

	run, err = client.GetRun(ctx, "thread_1", "run_1")
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunRequiresAction, run.Status)
	require.NotNil(t, run.RequiredAction)
	assert.Equal(t, agentsvc.ActionSubmitToolApproval, run.RequiredAction.Type)
	require.Len(t, run.RequiredAction.ToolCalls, 2)
	assert.Equal(t, "get_bike_by_id", run.RequiredAction.ToolCalls[1].Name)
	assert.Equal(t, `{"bikeId":3}`, run.RequiredAction.ToolCalls[1].Arguments)

	run, err = client.SubmitToolApprovals(ctx, "thread_1", "run_1", []agentsvc.ToolApproval{
		{ToolCallID: "call_1", Approve: true},
		{ToolCallID: "call_2", Approve: false},
	})
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunInProgress, run.Status)
}

func TestAgents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/demo/assistants", func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		if after == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"data":     []map[string]any{{"id": "asst_1", "name": "Bot"}, {"id": "asst_2", "name": "Other"}},
				"last_id":  "asst_2",
				"has_more": true,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":     []map[string]any{{"id": "asst_3", "name": "Bot"}},
			"last_id":  "asst_3",
			"has_more": false,
		})
	})
	mux.HandleFunc("GET /api/projects/demo/assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "name": "Bot", "model": "gpt-4o"})
	})
	mux.HandleFunc("POST /api/projects/demo/assistants", func(w http.ResponseWriter, r *http.Request) {
		var req createAgentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, []agentsvc.ToolDefinition{{Type: "mcp", ServerLabel: "contoso_store", ServerURL: "https://mcp.example.com"}}, req.Tools)
		writeJSON(w, http.StatusOK, map[string]any{"id": "asst_new", "name": req.Name, "model": req.Model, "tools": req.Tools})
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	agents, err := client.ListAgents(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"asst_1", "asst_2", "asst_3"}, ids)

	agent, err := client.GetAgent(ctx, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", agent.Model)

	created, err := client.CreateAgent(ctx, agentsvc.AgentSpec{
		Model: "gpt-4o",
		Name:  "Bot",
		Tools: []agentsvc.ToolDefinition{{Type: "mcp", ServerLabel: "contoso_store", ServerURL: "https://mcp.example.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "asst_new", created.ID)
	assert.Equal(t, "Bot", created.Name)
}

func TestStaticTokenAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects/demo/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id")})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	httpClient, err := NewHTTPClient(context.Background(), Credentials{Token: "secret-token"})
	require.NoError(t, err)
	client, err := New(Options{Endpoint: srv.URL + "/api/projects/demo", HTTPClient: httpClient})
	require.NoError(t, err)

	_, err = client.GetThread(context.Background(), "thread_1")
	require.NoError(t, err)
}

func TestClientCredentialsAuth(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		assert.Equal(t, DefaultScope, r.PostForm.Get("scope"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "issued-token", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /api/projects/demo/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id")})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	httpClient, err := NewHTTPClient(context.Background(), Credentials{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		TokenURL:     srv.URL + "/token",
	})
	require.NoError(t, err)
	client, err := New(Options{Endpoint: srv.URL + "/api/projects/demo", HTTPClient: httpClient})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = client.GetThread(context.Background(), fmt.Sprintf("thread_%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls, "token should be cached between requests")
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), Credentials{})
	assert.Error(t, err)

	_, err = NewHTTPClient(context.Background(), Credentials{ClientID: "a", ClientSecret: "b"})
	assert.Error(t, err, "tenant is required without an explicit token url")
}
