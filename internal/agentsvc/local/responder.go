package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/tools"
)

// AvailableTool is a catalog tool reachable from the current run
type AvailableTool struct {
	ServerLabel string
	tools.Tool
}

// ToolOutput is the result of one answered tool call
type ToolOutput struct {
	CallID      string
	Name        string
	ServerLabel string
	Arguments   string
	Approved    bool
	Output      string
}

// Turn is everything a responder sees when a run is stepped
type Turn struct {
	Agent    agentsvc.Agent
	Messages []agentsvc.Message
	Tools    []AvailableTool
	// Outputs are the answered tool calls of this run, in call order
	Outputs []ToolOutput
	// Round counts how many tool batches the run already requested
	Round int
}

// ToolRequest asks for one tool invocation
type ToolRequest struct {
	Name        string
	ServerLabel string
	Arguments   string
}

// Reply is either a final assistant text or a batch of tool requests
type Reply struct {
	Text      string
	ToolCalls []ToolRequest
}

// Responder produces the agent side of a run
type Responder interface {
	Respond(ctx context.Context, turn Turn) (Reply, error)
}

// lastUserText returns the text of the most recent user message
func lastUserText(messages []agentsvc.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == agentsvc.RoleUser {
			return messageText(messages[i])
		}
	}
	return ""
}

func messageText(m agentsvc.Message) string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// EchoResponder answers without a model. When the last user message names one of
// the available tools it requests that tool once, then reports the tool output.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, turn Turn) (Reply, error) {
	if len(turn.Outputs) > 0 {
		var b strings.Builder
		for i, out := range turn.Outputs {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(out.Output)
		}
		return Reply{Text: b.String()}, nil
	}

	text := lastUserText(turn.Messages)
	if turn.Round == 0 {
		if t, ok := mentionedTool(turn.Tools, text); ok {
			return Reply{ToolCalls: []ToolRequest{{Name: t.Name, ServerLabel: t.ServerLabel, Arguments: "{}"}}}, nil
		}
	}
	if text == "" {
		return Reply{Text: fmt.Sprintf("Hello, I am %s.", turn.Agent.Name)}, nil
	}
	return Reply{Text: "You said: " + text}, nil
}

func mentionedTool(available []AvailableTool, text string) (AvailableTool, bool) {
	byLabel := map[string][]tools.Tool{}
	var labels []string
	for _, t := range available {
		if _, ok := byLabel[t.ServerLabel]; !ok {
			labels = append(labels, t.ServerLabel)
		}
		byLabel[t.ServerLabel] = append(byLabel[t.ServerLabel], t.Tool)
	}
	for _, label := range labels {
		if t, ok := tools.NewCatalog(label, 0, byLabel[label]...).Mention(text); ok {
			return AvailableTool{ServerLabel: label, Tool: t}, true
		}
	}
	return AvailableTool{}, false
}

// LLMResponder drives the run with a chat model. Catalog tools are offered to the
// model as functions; function calls become tool approval requests.
type LLMResponder struct {
	Model llms.Model
	// Options are passed to every GenerateContent call
	Options []llms.CallOption
}

func (r LLMResponder) Respond(ctx context.Context, turn Turn) (Reply, error) {
	if r.Model == nil {
		return Reply{}, errors.New("llm responder has no model")
	}

	opts := append([]llms.CallOption{}, r.Options...)
	if defs := functionTools(turn.Tools); len(defs) > 0 {
		opts = append(opts, llms.WithTools(defs))
	}

	resp, err := r.Model.GenerateContent(ctx, conversation(turn), opts...)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Reply{}, errors.New("model returned no choices")
	}
	choice := resp.Choices[0]

	if len(choice.ToolCalls) == 0 {
		return Reply{Text: choice.Content}, nil
	}

	var reply Reply
	for _, call := range choice.ToolCalls {
		if call.FunctionCall == nil {
			continue
		}
		label, ok := serverOf(turn.Tools, call.FunctionCall.Name)
		if !ok {
			return Reply{}, fmt.Errorf("model requested unknown tool %q", call.FunctionCall.Name)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolRequest{
			Name:        call.FunctionCall.Name,
			ServerLabel: label,
			Arguments:   normalizeArguments(call.FunctionCall.Arguments),
		})
	}
	if len(reply.ToolCalls) == 0 {
		reply.Text = choice.Content
	}
	return reply, nil
}

func conversation(turn Turn) []llms.MessageContent {
	msgs := []llms.MessageContent{}
	if turn.Agent.Instructions != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, turn.Agent.Instructions))
	}
	for _, m := range turn.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == agentsvc.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, messageText(m)))
	}

	if len(turn.Outputs) == 0 {
		return msgs
	}
	calls := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	for _, out := range turn.Outputs {
		calls.Parts = append(calls.Parts, llms.ToolCall{
			ID:   out.CallID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      out.Name,
				Arguments: out.Arguments,
			},
		})
	}
	msgs = append(msgs, calls)
	for _, out := range turn.Outputs {
		msgs = append(msgs, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: out.CallID,
				Name:       out.Name,
				Content:    out.Output,
			}},
		})
	}
	return msgs
}

func functionTools(available []AvailableTool) []llms.Tool {
	out := make([]llms.Tool, 0, len(available))
	for _, t := range available {
		props := map[string]any{}
		for _, p := range t.Params {
			props[p] = map[string]any{"type": "string"}
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
				},
			},
		})
	}
	return out
}

func serverOf(available []AvailableTool, name string) (string, bool) {
	for _, t := range available {
		if t.Name == name {
			return t.ServerLabel, true
		}
	}
	return "", false
}

// normalizeArguments repairs model output that is almost JSON
func normalizeArguments(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		return repaired
	}
	return raw
}
