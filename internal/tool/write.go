package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/event"
	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// WriteDescriptor describes the write tool.
var WriteDescriptor = types.ToolDescriptor{
	Name: "write",
	Description: `Writes content to a file in the session's working directory.

Usage:
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- The file is replaced atomically; readers never see partial content
- Prefer edit for changing part of an existing file`,
	Parameters: []types.ParamSpec{
		{Name: "filePath", Kind: types.KindString, Required: true, Description: "The path to the file to write"},
		{Name: "content", Kind: types.KindString, Required: true, Description: "The content to write to the file"},
	},
	SideEffect: types.Mutating,
}

// WriteTool implements atomic file writing.
type WriteTool struct {
	fs     afero.Fs
	writer *fsutil.AtomicWriter
}

// WriteInput represents the input for the write tool.
type WriteInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(fs afero.Fs) *WriteTool {
	return &WriteTool{fs: fs, writer: fsutil.NewAtomicWriter(fs)}
}

func (t *WriteTool) Describe() types.ToolDescriptor { return WriteDescriptor }

func (t *WriteTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(WriteDescriptor, params); err != nil {
		return err
	}
	if stringParam(params, "filePath") == "" {
		return types.NewError(types.KindInvalidParameters, "filePath must not be empty")
	}
	return nil
}

func (t *WriteTool) Targets(params map[string]any) []Target {
	return []Target{{Param: "filePath", Path: stringParam(params, "filePath")}}
}

func (t *WriteTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var params WriteInput
	if err := decodeParams(call.Params, &params); err != nil {
		return nil, err
	}

	path := call.Resolve(params.FilePath)

	before, existed, err := readExisting(ctx, t.fs, path)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, types.CancelledError(ctx)
	}
	created := firstMissingDir(t.fs, filepath.Dir(path))
	if err := t.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.removeCreated(created)
		return nil, types.WrapError(types.KindIOFailure, err, "cannot create parent directory").WithPath(path)
	}

	if err := t.writer.WriteFile(ctx, path, []byte(params.Content), fsutil.ModeOf(t.fs, path)); err != nil {
		t.removeCreated(created)
		return nil, err
	}
	publishFileEdited(call, path)

	diff := DiffSummary{Skipped: true}
	if before != nil {
		diff = buildDiff(path, *before, params.Content, call.WorkDir)
	}
	payload := diff.payload(map[string]any{
		"file":    call.Rel(path),
		"bytes":   len(params.Content),
		"created": !existed,
	})

	return &Result{
		Title:   fmt.Sprintf("Wrote %s", filepath.Base(path)),
		Output:  fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), call.Rel(path)),
		Payload: payload,
	}, nil
}

// firstMissingDir returns the outermost ancestor of dir, or dir itself,
// that does not exist yet. It is empty when dir exists.
func firstMissingDir(fs afero.Fs, dir string) string {
	missing := ""
	for cur := dir; ; cur = filepath.Dir(cur) {
		if _, err := fs.Stat(cur); err == nil {
			return missing
		}
		missing = cur
		if filepath.Dir(cur) == cur {
			return missing
		}
	}
}

// removeCreated undoes the directories a failed write created. Only empty
// directories are removed, deepest first, so nothing created concurrently
// by someone else is lost.
func (t *WriteTool) removeCreated(top string) {
	if top == "" {
		return
	}
	var dirs []string
	_ = afero.Walk(t.fs, top, func(p string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = t.fs.Remove(dirs[i])
	}
}

// readExisting returns the content of path, "" when it does not exist, or
// nil when it is too large to diff. Oversized files are not read at all.
func readExisting(ctx context.Context, fs afero.Fs, path string) (*string, bool, error) {
	empty := ""
	info, err := fsutil.StatFile(fs, path)
	if err != nil {
		if types.KindOf(err) == types.KindNotFound {
			return &empty, false, nil
		}
		return nil, false, err
	}
	if info.Size() > maxDiffBytes {
		return nil, true, nil
	}

	data, err := fsutil.ReadFile(ctx, fs, path)
	if err != nil {
		return nil, false, err
	}
	content := string(data)
	return &content, true, nil
}

// publishFileEdited announces a committed file. Calls outside a session
// publish nothing.
func publishFileEdited(call *Call, path string) {
	if call == nil || call.SessionID == "" {
		return
	}
	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{
			SessionID: call.SessionID,
			File:      call.Rel(path),
		},
	})
}
