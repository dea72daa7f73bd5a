package types

import "time"

// ParamKind is the expected kind of a tool parameter value.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindArray   ParamKind = "array"
	KindObject  ParamKind = "object"
)

// SideEffect declares whether a tool mutates the file system.
type SideEffect string

const (
	ReadOnly SideEffect = "read-only"
	Mutating SideEffect = "mutating"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// ToolDescriptor is the registered, immutable description of a tool.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
	SideEffect  SideEffect  `json:"sideEffect"`
}

// Param returns the spec of the named parameter.
func (d ToolDescriptor) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ToolInvocation is one request to run a tool inside a session.
type ToolInvocation struct {
	Tool            string         `json:"tool" yaml:"tool"`
	Parameters      map[string]any `json:"parameters" yaml:"parameters"`
	SessionID       string         `json:"sessionID,omitempty" yaml:"sessionID,omitempty"`
	Deadline        *time.Time     `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	ContinueOnError bool           `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`
}

// Outcome tags a ToolResult.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSkipped   Outcome = "skipped"
)

// ToolError is the error detail attached to a failed or cancelled result.
type ToolError struct {
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`

	// Detail includes paths and causes; it is never serialized.
	Detail string `json:"-"`
}

// ToolResult is the outcome of one invocation.
type ToolResult struct {
	Tool     string         `json:"tool"`
	CallID   string         `json:"callID,omitempty"`
	Outcome  Outcome        `json:"outcome"`
	Title    string         `json:"title,omitempty"`
	Output   string         `json:"output,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Error    *ToolError     `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// OK reports whether the invocation succeeded.
func (r ToolResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Stops reports whether a chain should stop after this result.
func (r ToolResult) Stops() bool {
	return r.Outcome == OutcomeFailure || r.Outcome == OutcomeCancelled
}
