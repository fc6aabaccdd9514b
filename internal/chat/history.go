package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agentchat/internal/agentsvc"
)

// HistoryEntry is one text item of a thread message
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryProjector reads a thread's messages as chat history
type HistoryProjector struct {
	svc agentsvc.Service
}

func NewHistoryProjector(svc agentsvc.Service) *HistoryProjector {
	return &HistoryProjector{svc: svc}
}

// History returns the thread's text items oldest first. An empty or unknown thread
// id yields an empty slice.
func (h *HistoryProjector) History(ctx context.Context, threadID string) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	if threadID == "" {
		return entries, nil
	}

	ctx, span := tracer.Start(ctx, "chat.History")
	defer span.End()
	span.SetAttributes(attribute.String("thread.id", threadID))

	if _, err := h.svc.GetThread(ctx, threadID); err != nil {
		if errors.Is(err, agentsvc.ErrNotFound) {
			return entries, nil
		}
		spanError(span, err)
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}

	messages, err := h.svc.ListMessages(ctx, threadID, agentsvc.OrderAscending)
	if err != nil {
		if errors.Is(err, agentsvc.ErrNotFound) {
			return entries, nil
		}
		spanError(span, err)
		return nil, fmt.Errorf("failed to list messages of thread %s: %w", threadID, err)
	}

	for _, m := range messages {
		role := "assistant"
		if m.Role == agentsvc.RoleUser {
			role = "user"
		}
		for _, item := range m.Content {
			if item.Type != "text" {
				continue
			}
			entries = append(entries, HistoryEntry{Role: role, Content: item.Text, CreatedAt: m.CreatedAt})
		}
	}
	return entries, nil
}
