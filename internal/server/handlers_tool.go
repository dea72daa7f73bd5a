package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// InvokeRequest is the body of POST /session/{id}/invoke.
type InvokeRequest struct {
	Tool       string         `json:"tool" validate:"required"`
	Parameters map[string]any `json:"parameters"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
	TimeoutMs  int64          `json:"timeoutMs,omitempty" validate:"gte=0"`
}

// StepRequest is one entry of a chain or batch.
type StepRequest struct {
	Tool            string         `json:"tool" validate:"required"`
	Parameters      map[string]any `json:"parameters"`
	ContinueOnError bool           `json:"continueOnError,omitempty"`
}

// StepsRequest is the body of POST /session/{id}/chain and /batch.
type StepsRequest struct {
	Steps []StepRequest `json:"steps" validate:"required,min=1,dive"`
}

// StepsResponse carries per-step results in request order.
type StepsResponse struct {
	Results []types.ToolResult `json:"results"`
}

// MessagePart is one tool part of a chat-style message.
type MessagePart struct {
	Type       string         `json:"type,omitempty" validate:"omitempty,eq=tool"`
	Tool       string         `json:"tool" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

// MessageRequest is the body of POST /session/{id}/message.
type MessageRequest struct {
	Parts []MessagePart `json:"parts" validate:"required,min=1,dive"`
}

// ToolPartState is the state of a tool part after execution.
type ToolPartState struct {
	Status string           `json:"status"`
	Input  map[string]any   `json:"input"`
	Title  string           `json:"title,omitempty"`
	Output string           `json:"output,omitempty"`
	Error  *types.ToolError `json:"error,omitempty"`
}

// ToolPart is a tool part of the message response.
type ToolPart struct {
	ID     string           `json:"id,omitempty"`
	Type   string           `json:"type"`
	Tool   string           `json:"tool"`
	State  ToolPartState    `json:"state"`
	Result types.ToolResult `json:"result"`
}

// MessageResponse is the reply to POST /session/{id}/message.
type MessageResponse struct {
	SessionID string     `json:"sessionID"`
	Parts     []ToolPart `json:"parts"`
}

// listTools handles GET /tool
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runtime.Tools())
}

// invokeTool handles POST /session/{sessionID}/invoke
func (s *Server) invokeTool(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req InvokeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	deadline := req.Deadline
	if deadline == nil && req.TimeoutMs > 0 {
		d := time.Now().Add(time.Duration(req.TimeoutMs) * time.Millisecond)
		deadline = &d
	}

	result, err := s.runtime.Invoke(r.Context(), sessionID, req.Tool, req.Parameters, deadline)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// invokeChain handles POST /session/{sessionID}/chain
func (s *Server) invokeChain(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req StepsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	results := s.runtime.InvokeChain(r.Context(), sessionID, toInvocations(req.Steps))
	writeJSON(w, http.StatusOK, StepsResponse{Results: results})
}

// invokeBatch handles POST /session/{sessionID}/batch
func (s *Server) invokeBatch(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req StepsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	results := s.runtime.InvokeBatch(r.Context(), sessionID, toInvocations(req.Steps))
	writeJSON(w, http.StatusOK, StepsResponse{Results: results})
}

// sendMessage handles POST /session/{sessionID}/message. The parts run as
// a chain and come back as tool parts.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	steps := make([]types.ToolInvocation, len(req.Parts))
	for i, p := range req.Parts {
		steps[i] = types.ToolInvocation{Tool: p.Tool, Parameters: p.Parameters}
	}
	results := s.runtime.InvokeChain(r.Context(), sessionID, steps)

	resp := MessageResponse{SessionID: sessionID, Parts: make([]ToolPart, len(results))}
	for i, res := range results {
		resp.Parts[i] = ToolPart{
			ID:   res.CallID,
			Type: "tool",
			Tool: res.Tool,
			State: ToolPartState{
				Status: partStatus(res.Outcome),
				Input:  req.Parts[i].Parameters,
				Title:  res.Title,
				Output: res.Output,
				Error:  res.Error,
			},
			Result: res,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireSession resolves the session in the URL and writes 404 when it
// does not exist.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.runtime.GetSession(r.Context(), sessionID); err != nil {
		writeCoreError(w, err)
		return "", false
	}
	return sessionID, true
}

func toInvocations(steps []StepRequest) []types.ToolInvocation {
	out := make([]types.ToolInvocation, len(steps))
	for i, step := range steps {
		out[i] = types.ToolInvocation{
			Tool:            step.Tool,
			Parameters:      step.Parameters,
			ContinueOnError: step.ContinueOnError,
		}
	}
	return out
}

func partStatus(outcome types.Outcome) string {
	switch outcome {
	case types.OutcomeSuccess:
		return "completed"
	case types.OutcomeSkipped:
		return "skipped"
	default:
		return "error"
	}
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  len(s.runtime.Tools()),
	})
}
