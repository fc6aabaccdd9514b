package agentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNotFound is returned (wrapped) when the agent service reports a missing resource
var ErrNotFound = errors.New("agent service: resource not found")

// MessageRole identifies the author of a thread message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ListOrder controls the ordering of listed messages
type ListOrder string

const (
	OrderAscending  ListOrder = "asc"
	OrderDescending ListOrder = "desc"
)

// RunStatus is the lifecycle state of a run on the remote service
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunExpired        RunStatus = "expired"
)

// Pending reports whether the run still has to be polled.
// Every status other than queued, in_progress and requires_action is terminal.
func (s RunStatus) Pending() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction:
		return true
	}
	return false
}

// ActionSubmitToolApproval is the required action kind for a batch of tool approvals
const ActionSubmitToolApproval = "submit_tool_approval"

// ToolTypeMCP is the tool type of an external MCP tool provider
const ToolTypeMCP = "mcp"

// Thread is a remote conversation handle
type Thread struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToolDefinition describes an external tool provider bound to an agent
type ToolDefinition struct {
	Type        string `json:"type"`
	ServerLabel string `json:"server_label"`
	ServerURL   string `json:"server_url"`
}

// MCPToolResource binds a run to one MCP server the agent may call
type MCPToolResource struct {
	ServerLabel     string `json:"server_label"`
	RequireApproval string `json:"require_approval,omitempty"`
}

// ToolResources is the per-run tool binding
type ToolResources struct {
	MCP []MCPToolResource `json:"mcp,omitempty"`
}

// Agent is a registered agent identity on the remote service
type Agent struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AgentSpec holds the fields needed to create an agent
type AgentSpec struct {
	Model        string
	Name         string
	Instructions string
	Tools        []ToolDefinition
}

// ContentItem is one piece of message content. Only text items carry Text.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is a thread message
type Message struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	Role      MessageRole   `json:"role"`
	CreatedAt time.Time     `json:"created_at"`
	Content   []ContentItem `json:"content"`
}

// ToolCall is a pending tool invocation awaiting approval
type ToolCall struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ServerLabel string `json:"server_label,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
}

// DecodeArguments parses the model-produced argument string of a tool call.
// Malformed JSON is repaired before giving up; an empty string yields an empty map.
func (tc ToolCall) DecodeArguments() (map[string]any, error) {
	raw := strings.TrimSpace(tc.Arguments)
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to repair arguments of tool call %s: %w", tc.ID, err)
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("failed to decode arguments of tool call %s: %w", tc.ID, err)
	}
	return args, nil
}

// RequiredAction is what a run in requires_action is waiting for
type RequiredAction struct {
	Type      string     `json:"type"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// RunError is the failure detail the service attaches to a failed run
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one execution of an agent against a thread
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ToolApproval is the decision for one pending tool call
type ToolApproval struct {
	ToolCallID string `json:"tool_call_id"`
	Approve    bool   `json:"approve"`
}

// Service is the managed agent service the gateway talks to.
// Every call is a round trip; nothing is cached locally.
type Service interface {
	CreateThread(ctx context.Context) (*Thread, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	CreateMessage(ctx context.Context, threadID string, role MessageRole, text string) (*Message, error)
	ListMessages(ctx context.Context, threadID string, order ListOrder) ([]Message, error)
	CreateRun(ctx context.Context, threadID, agentID string, resources ToolResources) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) (*Run, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	CreateAgent(ctx context.Context, spec AgentSpec) (*Agent, error)
}
