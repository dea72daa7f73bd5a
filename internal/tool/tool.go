// Package tool provides the tool contract, the registry and the built-in
// file tools.
package tool

import (
	"context"
	"path/filepath"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Describe returns the tool descriptor.
	Describe() types.ToolDescriptor

	// ValidateParameters checks params against the descriptor and fails
	// with InvalidParameters. It runs before permission checks.
	ValidateParameters(params map[string]any) error

	// Targets lists the paths named by params. Each one is authorized
	// before Execute is called. params have already been validated.
	Targets(params map[string]any) []Target

	// Execute runs the tool. It must observe ctx at every I/O boundary.
	Execute(ctx context.Context, call *Call) (*Result, error)
}

// Target is a path named by a tool parameter.
type Target struct {
	Param string
	Path  string
}

// Call provides execution context to tools.
type Call struct {
	SessionID string
	CallID    string
	WorkDir   string
	Params    map[string]any

	// Paths maps each raw target path to its authorized absolute path.
	Paths map[string]string

	// Metadata callback for progress updates
	OnMetadata func(title string, meta map[string]any)
}

// SetMetadata reports progress.
func (c *Call) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// Resolve returns the authorized path for raw. Paths that were not
// authorized are resolved against WorkDir.
func (c *Call) Resolve(raw string) string {
	if p, ok := c.Paths[raw]; ok {
		return p
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Join(c.WorkDir, raw)
}

// Rel returns path relative to WorkDir, or path itself when that is not
// possible.
func (c *Call) Rel(path string) string {
	return relativePath(path, c.WorkDir)
}

// Result represents the output of a tool execution.
type Result struct {
	Title   string         `json:"title"`
	Output  string         `json:"output"`
	Payload map[string]any `json:"payload,omitempty"`
}
