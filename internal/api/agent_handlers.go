package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agentchat/internal/personas"
)

// getAgent handles GET /api/agent[?name=]
func (s *Server) getAgent(c echo.Context) error {
	p, err := s.personas.Lookup(c.QueryParam("name"))
	if errors.Is(err, personas.ErrUnknownPersona) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, p)
}

// listAgents handles GET /api/agents
func (s *Server) listAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.personas.All())
}
