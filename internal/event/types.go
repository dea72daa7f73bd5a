package event

import (
	"time"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionClosedData is the data for session.closed events.
type SessionClosedData struct {
	Info *types.Session `json:"info"`
}

// ToolInvokedData is the data for tool.invoked events.
type ToolInvokedData struct {
	SessionID string `json:"sessionID"`
	CallID    string `json:"callID"`
	Tool      string `json:"tool"`
}

// ToolCompletedData is the data for tool.completed events.
type ToolCompletedData struct {
	SessionID string           `json:"sessionID"`
	CallID    string           `json:"callID"`
	Tool      string           `json:"tool"`
	Outcome   types.Outcome    `json:"outcome"`
	Duration  time.Duration    `json:"duration"`
	Error     *types.ToolError `json:"error,omitempty"`
}

// FileEditedData is the data for file.edited events. File is relative to
// the session's working directory.
type FileEditedData struct {
	SessionID string `json:"sessionID"`
	File      string `json:"file"`
}

// EventSessionID implementations let the bus route events by session.

func (d SessionCreatedData) EventSessionID() string { return sessionOf(d.Info) }
func (d SessionClosedData) EventSessionID() string  { return sessionOf(d.Info) }
func (d ToolInvokedData) EventSessionID() string    { return d.SessionID }
func (d ToolCompletedData) EventSessionID() string  { return d.SessionID }
func (d FileEditedData) EventSessionID() string     { return d.SessionID }

func sessionOf(s *types.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}
