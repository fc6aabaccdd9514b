package foundry

import (
	"time"

	"github.com/agentchat/internal/agentsvc"
)

// Wire shapes of the persistent agents REST API. Timestamps are unix seconds.

type listResponse[T any] struct {
	Object  string `json:"object"`
	Data    []T    `json:"data"`
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
	HasMore bool   `json:"has_more"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type threadObject struct {
	ID        string            `json:"id"`
	CreatedAt int64             `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type textValue struct {
	Value string `json:"value"`
}

type contentObject struct {
	Type string     `json:"type"`
	Text *textValue `json:"text,omitempty"`
}

type messageObject struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Role      string          `json:"role"`
	CreatedAt int64           `json:"created_at"`
	Content   []contentObject `json:"content"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolCallObject struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	ServerLabel string `json:"server_label,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
}

type toolCallBatch struct {
	ToolCalls []toolCallObject `json:"tool_calls"`
}

type requiredActionObject struct {
	Type               string         `json:"type"`
	SubmitToolApproval *toolCallBatch `json:"submit_tool_approval,omitempty"`
	SubmitToolOutputs  *toolCallBatch `json:"submit_tool_outputs,omitempty"`
}

type runObject struct {
	ID             string                `json:"id"`
	ThreadID       string                `json:"thread_id"`
	AssistantID    string                `json:"assistant_id"`
	Status         string                `json:"status"`
	RequiredAction *requiredActionObject `json:"required_action,omitempty"`
	LastError      *agentsvc.RunError    `json:"last_error,omitempty"`
	CreatedAt      int64                 `json:"created_at"`
}

type createRunRequest struct {
	AssistantID   string                 `json:"assistant_id"`
	ToolResources agentsvc.ToolResources `json:"tool_resources"`
}

type toolApprovalObject struct {
	ToolCallID string `json:"tool_call_id"`
	Approve    bool   `json:"approve"`
}

type submitToolApprovalsRequest struct {
	ToolApprovals []toolApprovalObject `json:"tool_approvals"`
}

type agentObject struct {
	ID           string                    `json:"id"`
	Name         string                    `json:"name"`
	Model        string                    `json:"model"`
	Instructions string                    `json:"instructions,omitempty"`
	Tools        []agentsvc.ToolDefinition `json:"tools,omitempty"`
	CreatedAt    int64                     `json:"created_at"`
}

type createAgentRequest struct {
	Model        string                    `json:"model"`
	Name         string                    `json:"name"`
	Instructions string                    `json:"instructions,omitempty"`
	Tools        []agentsvc.ToolDefinition `json:"tools,omitempty"`
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (t threadObject) toThread() *agentsvc.Thread {
	return &agentsvc.Thread{
		ID:        t.ID,
		CreatedAt: unixTime(t.CreatedAt),
		Metadata:  t.Metadata,
	}
}

func (m messageObject) toMessage() agentsvc.Message {
	msg := agentsvc.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      agentsvc.MessageRole(m.Role),
		CreatedAt: unixTime(m.CreatedAt),
		Content:   make([]agentsvc.ContentItem, 0, len(m.Content)),
	}
	for _, c := range m.Content {
		item := agentsvc.ContentItem{Type: c.Type}
		if c.Text != nil {
			item.Text = c.Text.Value
		}
		msg.Content = append(msg.Content, item)
	}
	return msg
}

func (r runObject) toRun() *agentsvc.Run {
	run := &agentsvc.Run{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		AgentID:   r.AssistantID,
		Status:    agentsvc.RunStatus(r.Status),
		LastError: r.LastError,
		CreatedAt: unixTime(r.CreatedAt),
	}
	if ra := r.RequiredAction; ra != nil {
		action := &agentsvc.RequiredAction{Type: ra.Type}
		batch := ra.SubmitToolApproval
		if batch == nil {
			batch = ra.SubmitToolOutputs
		}
		if batch != nil {
			for _, tc := range batch.ToolCalls {
				action.ToolCalls = append(action.ToolCalls, agentsvc.ToolCall{
					ID:          tc.ID,
					Type:        tc.Type,
					Name:        tc.Name,
					ServerLabel: tc.ServerLabel,
					Arguments:   tc.Arguments,
				})
			}
		}
		run.RequiredAction = action
	}
	return run
}

func (a agentObject) toAgent() agentsvc.Agent {
	return agentsvc.Agent{
		ID:           a.ID,
		Name:         a.Name,
		Model:        a.Model,
		Instructions: a.Instructions,
		Tools:        a.Tools,
		CreatedAt:    unixTime(a.CreatedAt),
	}
}
