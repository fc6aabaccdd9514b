package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/observability"
)

// ThreadResolution is the thread a conversation continues on.
// Callers must adopt Thread.ID, which differs from the candidate when Created is set.
type ThreadResolution struct {
	Thread   agentsvc.Thread
	Created  bool
	Fallback bool
}

// ThreadResolver turns a client supplied thread id into a usable thread
type ThreadResolver struct {
	svc     agentsvc.Service
	metrics *observability.Metrics
}

func NewThreadResolver(svc agentsvc.Service, metrics *observability.Metrics) *ThreadResolver {
	return &ThreadResolver{svc: svc, metrics: metrics}
}

// ResolveThread fetches the candidate thread, creating a new one when the candidate is
// empty or cannot be fetched. Lookup failures are logged and never returned.
func (r *ThreadResolver) ResolveThread(ctx context.Context, candidateID string) (ThreadResolution, error) {
	ctx, span := tracer.Start(ctx, "chat.ResolveThread")
	defer span.End()
	span.SetAttributes(attribute.String("thread.candidate_id", candidateID))

	fallback := false
	if candidateID != "" {
		thread, err := r.svc.GetThread(ctx, candidateID)
		if err == nil && thread != nil {
			r.metrics.Resolved("thread", "found")
			return ThreadResolution{Thread: *thread}, nil
		}
		if err == nil {
			err = errors.New("service returned no thread")
		}
		log.Warn().Err(err).
			Str("thread_id", candidateID).
			Msg("Thread lookup failed, creating a new thread")
		fallback = true
	}

	thread, err := r.svc.CreateThread(ctx)
	if err != nil {
		spanError(span, err)
		return ThreadResolution{}, fmt.Errorf("failed to create thread: %w", err)
	}

	outcome := "created"
	if fallback {
		outcome = "fallback"
	}
	r.metrics.Resolved("thread", outcome)
	span.SetAttributes(attribute.String("thread.id", thread.ID), attribute.Bool("thread.fallback", fallback))
	log.Debug().Str("thread_id", thread.ID).Bool("fallback", fallback).Msg("Created thread")

	return ThreadResolution{Thread: *thread, Created: true, Fallback: fallback}, nil
}
