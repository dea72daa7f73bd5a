package tool

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// GlobDescriptor describes the glob tool.
var GlobDescriptor = types.ToolDescriptor{
	Name: "glob",
	Description: `Fast file pattern matching inside the session's working directory.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Patterns are relative to path (default: working directory)
- Returns at most 100 matching file paths, sorted`,
	Parameters: []types.ParamSpec{
		{Name: "pattern", Kind: types.KindString, Required: true, Description: "The glob pattern to match files against"},
		{Name: "path", Kind: types.KindString, Description: "Directory to search in (default: working directory)"},
	},
	SideEffect: types.ReadOnly,
}

// maxGlobResults caps the number of paths returned.
const maxGlobResults = 100

// GlobTool implements file pattern matching.
type GlobTool struct {
	fs afero.Fs
}

// GlobInput represents the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(fs afero.Fs) *GlobTool {
	return &GlobTool{fs: fs}
}

func (t *GlobTool) Describe() types.ToolDescriptor { return GlobDescriptor }

func (t *GlobTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(GlobDescriptor, params); err != nil {
		return err
	}
	pattern := stringParam(params, "pattern")
	if pattern == "" {
		return types.NewError(types.KindInvalidParameters, "pattern must not be empty")
	}
	if !doublestar.ValidatePattern(pattern) {
		return types.NewError(types.KindInvalidParameters, "invalid glob pattern")
	}
	if strings.HasPrefix(pattern, "/") {
		return types.NewError(types.KindInvalidParameters, "pattern must be relative to path")
	}
	for _, seg := range strings.Split(pattern, "/") {
		if seg == ".." {
			return types.NewError(types.KindInvalidParameters, "pattern must not contain '..'")
		}
	}
	return nil
}

func (t *GlobTool) Targets(params map[string]any) []Target {
	return []Target{{Param: "path", Path: dirParam(params, "path")}}
}

func (t *GlobTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var params GlobInput
	if err := decodeParams(call.Params, &params); err != nil {
		return nil, err
	}

	searchDir := call.Resolve(dirParam(call.Params, "path"))
	info, err := fsutil.Stat(t.fs, searchDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, types.NewError(types.KindInvalidParameters, "path is not a directory").WithPath(searchDir)
	}
	if ctx.Err() != nil {
		return nil, types.CancelledError(ctx)
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(t.fs, searchDir))
	found, err := doublestar.Glob(fsys, params.Pattern,
		doublestar.WithFilesOnly(), doublestar.WithNoFollow(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, types.WrapError(types.KindIOFailure, err, "glob failed").WithPath(searchDir)
	}
	if ctx.Err() != nil {
		return nil, types.CancelledError(ctx)
	}

	// Links that lead out of the working directory are dropped, the same
	// paths read and list refuse.
	matches := found[:0]
	for _, m := range found {
		if fsutil.Contains(t.fs, call.WorkDir, filepath.Join(searchDir, filepath.FromSlash(m))) {
			matches = append(matches, m)
		}
	}
	sort.Strings(matches)

	rel := call.Rel(searchDir)
	result := make([]string, 0, min(len(matches), maxGlobResults))
	for _, m := range matches {
		if len(result) == maxGlobResults {
			break
		}
		if rel == "." {
			result = append(result, m)
		} else {
			result = append(result, path.Join(rel, m))
		}
	}
	truncated := len(matches) > maxGlobResults

	if len(result) == 0 {
		return &Result{
			Title:  "Glob search",
			Output: "No files matched the pattern",
			Payload: map[string]any{
				"pattern": params.Pattern,
				"count":   0,
				"files":   result,
			},
		}, nil
	}

	output := strings.Join(result, "\n")
	if truncated {
		output += fmt.Sprintf("\n\n(Showing %d of %d files)", maxGlobResults, len(matches))
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files", len(result)),
		Output: output,
		Payload: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(result),
			"truncated": truncated,
			"files":     result,
		},
	}, nil
}
