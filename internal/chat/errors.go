package chat

import (
	"errors"
	"fmt"

	"github.com/agentchat/internal/agentsvc"
)

var (
	// ErrEmptyMessage is returned when a send request carries no message text
	ErrEmptyMessage = errors.New("message is required")
	// ErrRunTimeout is returned when a run is still pending after the maximum wait
	ErrRunTimeout = errors.New("timed out waiting for run to finish")
)

// RunFailedError reports a run that reached a terminal status other than completed
type RunFailedError struct {
	RunID   string
	Status  agentsvc.RunStatus
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
	}
	return fmt.Sprintf("run %s ended with status %s: %s: %s", e.RunID, e.Status, e.Code, e.Message)
}
