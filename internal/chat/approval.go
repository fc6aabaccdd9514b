package chat

import (
	"context"
	"fmt"
)

// ToolApprovalRequest is one pending tool call awaiting a decision
type ToolApprovalRequest struct {
	RunID       string
	ThreadID    string
	CallID      string
	ToolName    string
	ServerLabel string
	Arguments   map[string]any
}

// ApprovalPolicy decides whether a pending tool call may run
type ApprovalPolicy interface {
	Decide(ctx context.Context, req ToolApprovalRequest) (approve bool, reason string)
}

// ApprovalFunc adapts a function to ApprovalPolicy
type ApprovalFunc func(ctx context.Context, req ToolApprovalRequest) (bool, string)

func (f ApprovalFunc) Decide(ctx context.Context, req ToolApprovalRequest) (bool, string) {
	return f(ctx, req)
}

// ApproveAll approves every tool call
type ApproveAll struct{}

func (ApproveAll) Decide(context.Context, ToolApprovalRequest) (bool, string) {
	return true, "all tools approved"
}

// AllowList approves only the named tools
type AllowList struct {
	allowed map[string]bool
}

func NewAllowList(names ...string) AllowList {
	l := AllowList{allowed: make(map[string]bool, len(names))}
	for _, n := range names {
		l.allowed[n] = true
	}
	return l
}

func (l AllowList) Decide(_ context.Context, req ToolApprovalRequest) (bool, string) {
	if l.allowed[req.ToolName] {
		return true, "tool is allow-listed"
	}
	return false, fmt.Sprintf("tool %q is not allow-listed", req.ToolName)
}

const (
	PolicyApproveAll = "approve_all"
	PolicyAllowList  = "allow_list"
)

// NewApprovalPolicy builds a policy from its configured name
func NewApprovalPolicy(name string, allowed []string) (ApprovalPolicy, error) {
	switch name {
	case "", PolicyApproveAll:
		return ApproveAll{}, nil
	case PolicyAllowList:
		return NewAllowList(allowed...), nil
	default:
		return nil, fmt.Errorf("unknown approval policy %q", name)
	}
}
