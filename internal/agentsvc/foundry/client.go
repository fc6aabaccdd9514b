package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentchat/internal/agentsvc"
)

// DefaultAPIVersion is the api-version sent with every request unless overridden
const DefaultAPIVersion = "2025-05-15-preview"

const defaultPageSize = 100

// APIError is a non-2xx response from the agent service
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent service request failed with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agent service request failed with status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, agentsvc.ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == agentsvc.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Options configures a Client
type Options struct {
	Endpoint   string
	APIVersion string
	HTTPClient *http.Client
	PageSize   int
}

// Client talks to the persistent agents REST API of a project endpoint
type Client struct {
	endpoint   string
	apiVersion string
	client     *http.Client
	pageSize   int
}

var _ agentsvc.Service = (*Client)(nil)

// New creates a client for the given project endpoint
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("agent service endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid agent service endpoint %q: %w", endpoint, err)
	}

	c := &Client{
		endpoint:   endpoint,
		apiVersion: opts.APIVersion,
		client:     opts.HTTPClient,
		pageSize:   opts.PageSize,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	return c, nil
}

// CreateThread creates an empty thread
func (c *Client) CreateThread(ctx context.Context) (*agentsvc.Thread, error) {
	var out threadObject
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return out.toThread(), nil
}

// GetThread fetches a thread by id
func (c *Client) GetThread(ctx context.Context, threadID string) (*agentsvc.Thread, error) {
	var out threadObject
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return out.toThread(), nil
}

// CreateMessage appends a text message to a thread
func (c *Client) CreateMessage(ctx context.Context, threadID string, role agentsvc.MessageRole, text string) (*agentsvc.Message, error) {
	req := createMessageRequest{Role: string(role), Content: text}
	var out messageObject
	path := fmt.Sprintf("/threads/%s/messages", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, fmt.Errorf("failed to create message on thread %s: %w", threadID, err)
	}
	msg := out.toMessage()
	return &msg, nil
}

// ListMessages returns every message of a thread, following pagination
func (c *Client) ListMessages(ctx context.Context, threadID string, order agentsvc.ListOrder) ([]agentsvc.Message, error) {
	if order == "" {
		order = agentsvc.OrderAscending
	}
	path := fmt.Sprintf("/threads/%s/messages", url.PathEscape(threadID))

	var messages []agentsvc.Message
	after := ""
	for {
		query := url.Values{}
		query.Set("order", string(order))
		query.Set("limit", strconv.Itoa(c.pageSize))
		if after != "" {
			query.Set("after", after)
		}

		var page listResponse[messageObject]
		if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list messages of thread %s: %w", threadID, err)
		}
		for _, m := range page.Data {
			messages = append(messages, m.toMessage())
		}
		if !page.HasMore || page.LastID == "" || page.LastID == after {
			break
		}
		after = page.LastID
	}
	return messages, nil
}

// CreateRun starts a run of an agent on a thread
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string, resources agentsvc.ToolResources) (*agentsvc.Run, error) {
	req := createRunRequest{AssistantID: agentID, ToolResources: resources}
	var out runObject
	path := fmt.Sprintf("/threads/%s/runs", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, fmt.Errorf("failed to create run on thread %s: %w", threadID, err)
	}
	return out.toRun(), nil
}

// GetRun fetches the current state of a run
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*agentsvc.Run, error) {
	var out runObject
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return out.toRun(), nil
}

// SubmitToolApprovals answers a submit_tool_approval action in one batch
func (c *Client) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []agentsvc.ToolApproval) (*agentsvc.Run, error) {
	req := submitToolApprovalsRequest{ToolApprovals: make([]toolApprovalObject, 0, len(approvals))}
	for _, a := range approvals {
		req.ToolApprovals = append(req.ToolApprovals, toolApprovalObject{ToolCallID: a.ToolCallID, Approve: a.Approve})
	}

	var out runObject
	path := fmt.Sprintf("/threads/%s/runs/%s/submit_tool_outputs", url.PathEscape(threadID), url.PathEscape(runID))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, fmt.Errorf("failed to submit tool approvals for run %s: %w", runID, err)
	}
	return out.toRun(), nil
}

// ListAgents returns every agent of the project in service order
func (c *Client) ListAgents(ctx context.Context) ([]agentsvc.Agent, error) {
	var agents []agentsvc.Agent
	after := ""
	for {
		query := url.Values{}
		query.Set("order", string(agentsvc.OrderAscending))
		query.Set("limit", strconv.Itoa(c.pageSize))
		if after != "" {
			query.Set("after", after)
		}

		var page listResponse[agentObject]
		if err := c.do(ctx, http.MethodGet, "/assistants", query, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list agents: %w", err)
		}
		for _, a := range page.Data {
			agents = append(agents, a.toAgent())
		}
		if !page.HasMore || page.LastID == "" || page.LastID == after {
			break
		}
		after = page.LastID
	}
	return agents, nil
}

// GetAgent fetches an agent by id
func (c *Client) GetAgent(ctx context.Context, agentID string) (*agentsvc.Agent, error) {
	var out agentObject
	if err := c.do(ctx, http.MethodGet, "/assistants/"+url.PathEscape(agentID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get agent %s: %w", agentID, err)
	}
	agent := out.toAgent()
	return &agent, nil
}

// CreateAgent registers a new agent
func (c *Client) CreateAgent(ctx context.Context, spec agentsvc.AgentSpec) (*agentsvc.Agent, error) {
	req := createAgentRequest{
		Model:        spec.Model,
		Name:         spec.Name,
		Instructions: spec.Instructions,
		Tools:        spec.Tools,
	}
	var out agentObject
	if err := c.do(ctx, http.MethodPost, "/assistants", nil, req, &out); err != nil {
		return nil, fmt.Errorf("failed to create agent %s: %w", spec.Name, err)
	}
	agent := out.toAgent()
	return &agent, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	requestURL := c.endpoint + path + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("Agent service response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
