package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// EditDescriptor describes the edit tool.
var EditDescriptor = types.ToolDescriptor{
	Name: "edit",
	Description: `Performs an exact string replacement in a file.

Usage:
- oldString must occur exactly once in the file
- The edit FAILS when oldString is missing or ambiguous; add surrounding
  context to make it unique
- The file is replaced atomically and a diff summary is returned`,
	Parameters: []types.ParamSpec{
		{Name: "filePath", Kind: types.KindString, Required: true, Description: "The path to the file to edit"},
		{Name: "oldString", Kind: types.KindString, Required: true, Description: "The exact text to replace"},
		{Name: "newString", Kind: types.KindString, Required: true, Description: "The text to replace it with"},
	},
	SideEffect: types.Mutating,
}

// EditTool implements single-span file editing.
type EditTool struct {
	fs     afero.Fs
	writer *fsutil.AtomicWriter
}

// EditInput represents the input for the edit tool.
type EditInput struct {
	FilePath  string `json:"filePath"`
	OldString string `json:"oldString"`
	NewString string `json:"newString"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(fs afero.Fs) *EditTool {
	return &EditTool{fs: fs, writer: fsutil.NewAtomicWriter(fs)}
}

func (t *EditTool) Describe() types.ToolDescriptor { return EditDescriptor }

func (t *EditTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(EditDescriptor, params); err != nil {
		return err
	}
	return validateEdit(EditInput{
		FilePath:  stringParam(params, "filePath"),
		OldString: stringParam(params, "oldString"),
		NewString: stringParam(params, "newString"),
	})
}

func validateEdit(e EditInput) error {
	if e.FilePath == "" {
		return types.NewError(types.KindInvalidParameters, "filePath must not be empty")
	}
	if e.OldString == "" {
		return types.NewError(types.KindInvalidParameters, "oldString must not be empty")
	}
	if e.OldString == e.NewString {
		return types.NewError(types.KindInvalidParameters, "oldString and newString must be different")
	}
	return nil
}

func (t *EditTool) Targets(params map[string]any) []Target {
	return []Target{{Param: "filePath", Path: stringParam(params, "filePath")}}
}

func (t *EditTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var params EditInput
	if err := decodeParams(call.Params, &params); err != nil {
		return nil, err
	}

	path := call.Resolve(params.FilePath)
	content, err := fsutil.ReadFile(ctx, t.fs, path)
	if err != nil {
		return nil, err
	}
	before := string(content)

	after, err := replaceOnce(before, params.OldString, params.NewString)
	if err != nil {
		return nil, err
	}

	if err := t.writer.WriteFile(ctx, path, []byte(after), fsutil.ModeOf(t.fs, path)); err != nil {
		return nil, err
	}
	publishFileEdited(call, path)

	diff := buildDiff(path, before, after, call.WorkDir)
	return &Result{
		Title:   fmt.Sprintf("Edited %s", filepath.Base(path)),
		Output:  fmt.Sprintf("Replaced 1 occurrence (+%d -%d lines)", diff.Additions, diff.Deletions),
		Payload: diff.payload(map[string]any{"file": call.Rel(path)}),
	}, nil
}

// replaceOnce replaces the single occurrence of old in text. Missing and
// ambiguous matches fail with NoMatch; nothing is ever guessed.
func replaceOnce(text, old, replacement string) (string, error) {
	switch count := strings.Count(text, old); count {
	case 1:
		return strings.Replace(text, old, replacement, 1), nil
	case 0:
		if line, sim := closestLine(text, old); sim >= 0.5 {
			return "", types.NewError(types.KindNoMatch, "oldString not found; closest match at line %d (%.0f%% similar)", line, sim*100)
		}
		return "", types.NewError(types.KindNoMatch, "oldString not found")
	default:
		return "", types.NewError(types.KindNoMatch, "oldString found %d times; add context to make it unique", count)
	}
}

// closestLine returns the 1-based line where the block most similar to
// target starts, and that similarity.
func closestLine(text, target string) (int, float64) {
	lines := strings.Split(text, "\n")
	targetLen := len(strings.Split(target, "\n"))

	bestLine, best := 0, 0.0
	for i := 0; i+targetLen <= len(lines); i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > best {
			best = sim
			bestLine = i + 1
		}
	}
	return bestLine, best
}

// similarity calculates normalized Levenshtein similarity.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Length ratio approximation for extremely long strings
	if len(a) > 10000 || len(b) > 10000 {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}

	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}
