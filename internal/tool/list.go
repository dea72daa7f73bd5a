package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// ListDescriptor describes the list tool.
var ListDescriptor = types.ToolDescriptor{
	Name: "list",
	Description: `Lists files and directories in a directory of the session.

Usage:
- Returns file names, types (file/directory), and sizes
- Common build and dependency directories are skipped
- Useful for exploring directory structure`,
	Parameters: []types.ParamSpec{
		{Name: "path", Kind: types.KindString, Description: "The directory to list (default: working directory)"},
		{Name: "ignore", Kind: types.KindArray, Description: "List of glob patterns to ignore"},
	},
	SideEffect: types.ReadOnly,
}

// ListTool lists one directory level.
type ListTool struct {
	fs afero.Fs
}

// ListInput represents the input for the list tool.
type ListInput struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

// ListEntry is one listed file or directory. Size is zero for directories.
type ListEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
}

// skippedDirs are build, dependency and editor directories that are never
// listed.
var skippedDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, ".git": true, "dist": true,
	"build": true, "target": true, "vendor": true, "bin": true, "obj": true,
	".idea": true, ".vscode": true, ".zig-cache": true, "zig-out": true,
	"coverage": true, "tmp": true, "temp": true, ".cache": true, "cache": true,
	"logs": true, ".venv": true, "venv": true, "env": true,
}

// ignoreSet combines skippedDirs with caller supplied doublestar patterns
// matched against entry names.
type ignoreSet struct {
	patterns []string
}

func (s ignoreSet) skip(name string, isDir bool) bool {
	if isDir && skippedDirs[name] {
		return true
	}
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(p, name+"/"); ok {
				return true
			}
		}
	}
	return false
}

// NewListTool creates a new list tool.
func NewListTool(fs afero.Fs) *ListTool {
	return &ListTool{fs: fs}
}

func (t *ListTool) Describe() types.ToolDescriptor { return ListDescriptor }

func (t *ListTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(ListDescriptor, params); err != nil {
		return err
	}
	ignore, _ := params["ignore"].([]any)
	for i, p := range ignore {
		pattern, ok := p.(string)
		if !ok {
			return types.NewError(types.KindInvalidParameters, "ignore[%d] must be string", i)
		}
		if !doublestar.ValidatePattern(pattern) {
			return types.NewError(types.KindInvalidParameters, "ignore[%d] is not a valid pattern", i)
		}
	}
	return nil
}

func (t *ListTool) Targets(params map[string]any) []Target {
	return []Target{{Param: "path", Path: dirParam(params, "path")}}
}

// dirParam returns the named directory parameter, defaulting to ".".
func dirParam(params map[string]any, name string) string {
	if p := stringParam(params, name); p != "" {
		return p
	}
	return "."
}

func (t *ListTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var in ListInput
	if err := decodeParams(call.Params, &in); err != nil {
		return nil, err
	}

	dir := call.Resolve(dirParam(call.Params, "path"))
	info, err := fsutil.Stat(t.fs, dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, types.NewError(types.KindInvalidParameters, "path is not a directory").WithPath(dir)
	}
	if ctx.Err() != nil {
		return nil, types.CancelledError(ctx)
	}

	infos, err := afero.ReadDir(t.fs, dir)
	if err != nil {
		return nil, types.WrapError(types.KindIOFailure, err, "cannot read directory").WithPath(dir)
	}

	ignore := ignoreSet{patterns: in.Ignore}
	entries := make([]ListEntry, 0, len(infos))
	var out strings.Builder
	for _, fi := range infos {
		if ignore.skip(fi.Name(), fi.IsDir()) {
			continue
		}
		if fi.IsDir() {
			entries = append(entries, ListEntry{Name: fi.Name(), IsDirectory: true})
			fmt.Fprintf(&out, "[dir ] %s\n", fi.Name())
			continue
		}
		entries = append(entries, ListEntry{Name: fi.Name(), Size: fi.Size()})
		fmt.Fprintf(&out, "[file] %s (%d bytes)\n", fi.Name(), fi.Size())
	}

	return &Result{
		Title:  fmt.Sprintf("Listed %d items", len(entries)),
		Output: out.String(),
		Payload: map[string]any{
			"path":    call.Rel(dir),
			"count":   len(entries),
			"entries": entries,
		},
	}, nil
}
