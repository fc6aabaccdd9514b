package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/agentchat/internal/chat"
)

type sendMessageRequest struct {
	AgentName string `json:"agentName"`
	AgentID   string `json:"agentId,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
	Message   string `json:"message"`
}

type sendMessageResponse struct {
	ThreadID string `json:"threadId"`
	AgentID  string `json:"agentId"`
}

type errorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"threadId,omitempty"`
	AgentID  string `json:"agentId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// getHistory handles GET /api/chat/history?threadId=
func (s *Server) getHistory(c echo.Context) error {
	threadID := c.QueryParam("threadId")

	entries, err := s.chat.History(c.Request().Context(), threadID)
	if err != nil {
		log.Error().Err(err).
			Str("operation", "history").
			Str("thread_id", threadID).
			Msg("Failed to load chat history")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, entries)
}

// sendMessage handles POST /api/chat/send
func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	res, err := s.chat.Send(c.Request().Context(), chat.SendRequest{
		AgentName: req.AgentName,
		AgentID:   req.AgentID,
		ThreadID:  req.ThreadID,
		Message:   req.Message,
	})
	if err == nil {
		return c.JSON(http.StatusOK, sendMessageResponse{ThreadID: res.ThreadID, AgentID: res.AgentID})
	}
	if errors.Is(err, chat.ErrEmptyMessage) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	logEvent := log.Error().Err(err).
		Str("operation", "send").
		Str("thread_id", res.ThreadID).
		Str("agent_id", res.AgentID).
		Str("agent_name", req.AgentName)

	var failed *chat.RunFailedError
	switch {
	case errors.As(err, &failed):
		logEvent.Str("status", string(failed.Status)).Msg("Run did not complete")
		return c.JSON(http.StatusBadGateway, errorResponse{
			Error:    err.Error(),
			ThreadID: res.ThreadID,
			AgentID:  res.AgentID,
			Status:   string(failed.Status),
		})
	case errors.Is(err, chat.ErrRunTimeout):
		logEvent.Msg("Run timed out")
		return c.JSON(http.StatusGatewayTimeout, errorResponse{
			Error:    err.Error(),
			ThreadID: res.ThreadID,
			AgentID:  res.AgentID,
		})
	default:
		logEvent.Msg("Failed to send message")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
