package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// MultiEditDescriptor describes the multiedit tool.
var MultiEditDescriptor = types.ToolDescriptor{
	Name: "multiedit",
	Description: `Applies an ordered list of exact string replacements to one or more files.

Usage:
- Each edit has filePath, oldString and newString, with edit semantics
- Edits to the same file are applied in order to one in-memory copy and
  committed atomically together
- If any edit for a file fails, that file is left unchanged; files committed
  earlier in the call stay committed
- The result lists every file as committed or aborted:<reason>`,
	Parameters: []types.ParamSpec{
		{Name: "edits", Kind: types.KindArray, Required: true, Description: "Array of {filePath, oldString, newString} objects"},
	},
	SideEffect: types.Mutating,
}

// Per-file statuses reported by multiedit.
const (
	StatusCommitted = "committed"
	abortedPrefix   = "aborted:"
)

// MultiEditTool implements batched edits across files.
type MultiEditTool struct {
	fs     afero.Fs
	writer *fsutil.AtomicWriter
}

// MultiEditInput represents the input for the multiedit tool.
type MultiEditInput struct {
	Edits []EditInput `json:"edits"`
}

// FileOutcome reports what happened to one file of a multiedit call.
type FileOutcome struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	Edits     int    `json:"edits"`
	Additions int    `json:"additions,omitempty"`
	Deletions int    `json:"deletions,omitempty"`
}

// Committed reports whether the file was committed.
func (o FileOutcome) Committed() bool {
	return o.Status == StatusCommitted
}

// NewMultiEditTool creates a new multiedit tool.
func NewMultiEditTool(fs afero.Fs) *MultiEditTool {
	return &MultiEditTool{fs: fs, writer: fsutil.NewAtomicWriter(fs)}
}

func (t *MultiEditTool) Describe() types.ToolDescriptor { return MultiEditDescriptor }

func (t *MultiEditTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(MultiEditDescriptor, params); err != nil {
		return err
	}
	edits := editList(params)
	if len(edits) == 0 {
		return types.NewError(types.KindInvalidParameters, "edits must not be empty")
	}
	for i, raw := range edits {
		m, ok := raw.(map[string]any)
		if !ok {
			return types.NewError(types.KindInvalidParameters, "edits[%d] must be an object", i)
		}
		if err := ValidateAgainst(EditDescriptor, m); err != nil {
			return types.NewError(types.KindInvalidParameters, "edits[%d]: %s", i, types.AsError(err, types.KindInvalidParameters).Reason)
		}
		err := validateEdit(EditInput{
			FilePath:  stringParam(m, "filePath"),
			OldString: stringParam(m, "oldString"),
			NewString: stringParam(m, "newString"),
		})
		if err != nil {
			return types.NewError(types.KindInvalidParameters, "edits[%d]: %s", i, types.AsError(err, types.KindInvalidParameters).Reason)
		}
	}
	return nil
}

func editList(params map[string]any) []any {
	switch v := params["edits"].(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	}
	return nil
}

func (t *MultiEditTool) Targets(params map[string]any) []Target {
	edits := editList(params)
	targets := make([]Target, 0, len(edits))
	for i, raw := range edits {
		if m, ok := raw.(map[string]any); ok {
			targets = append(targets, Target{
				Param: fmt.Sprintf("edits[%d].filePath", i),
				Path:  stringParam(m, "filePath"),
			})
		}
	}
	return targets
}

type fileEdits struct {
	path  string
	edits []EditInput
}

// groupByFile groups edits per resolved path in first-appearance order.
func groupByFile(call *Call, edits []EditInput) []*fileEdits {
	var groups []*fileEdits
	index := make(map[string]*fileEdits)
	for _, e := range edits {
		path := call.Resolve(e.FilePath)
		g, ok := index[path]
		if !ok {
			g = &fileEdits{path: path}
			index[path] = g
			groups = append(groups, g)
		}
		g.edits = append(g.edits, e)
	}
	return groups
}

// Execute commits each file independently. When any file aborts, the
// result is returned together with the first abort error, so callers
// receive the per-file report alongside the failure.
func (t *MultiEditTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var params MultiEditInput
	if err := decodeParams(call.Params, &params); err != nil {
		return nil, err
	}

	groups := groupByFile(call, params.Edits)
	outcomes := make([]FileOutcome, 0, len(groups))
	var firstErr error
	cancelled := false

	for i, g := range groups {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			firstErr = types.CancelledError(ctx)
		}
		if cancelled {
			outcomes = append(outcomes, FileOutcome{File: call.Rel(g.path), Status: abortedPrefix + "cancelled", Edits: len(g.edits)})
			continue
		}

		call.SetMetadata(fmt.Sprintf("Editing %s", call.Rel(g.path)), map[string]any{"file": i + 1, "files": len(groups)})

		outcome, err := t.applyFile(ctx, call, g)
		outcomes = append(outcomes, outcome)
		if err == nil {
			continue
		}
		if types.KindOf(err) == types.KindCancelled {
			cancelled = true
			firstErr = err
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	result := buildMultiEditResult(outcomes)
	if firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

func (t *MultiEditTool) applyFile(ctx context.Context, call *Call, g *fileEdits) (FileOutcome, error) {
	outcome := FileOutcome{File: call.Rel(g.path), Edits: len(g.edits)}
	abort := func(err error) (FileOutcome, error) {
		if types.KindOf(err) == types.KindCancelled {
			outcome.Status = abortedPrefix + "cancelled"
		} else {
			outcome.Status = abortedPrefix + types.AsError(err, types.KindIOFailure).PublicMessage()
		}
		return outcome, err
	}

	content, err := fsutil.ReadFile(ctx, t.fs, g.path)
	if err != nil {
		return abort(err)
	}
	before := string(content)

	after := before
	for i, e := range g.edits {
		next, err := replaceOnce(after, e.OldString, e.NewString)
		if err != nil {
			te := types.AsError(err, types.KindNoMatch)
			return abort(types.NewError(te.Kind, "edit %d: %s", i+1, te.Reason).WithPath(g.path))
		}
		after = next
	}

	if err := t.writer.WriteFile(ctx, g.path, []byte(after), fsutil.ModeOf(t.fs, g.path)); err != nil {
		return abort(err)
	}
	publishFileEdited(call, g.path)

	diff := buildDiff(g.path, before, after, call.WorkDir)
	outcome.Status = StatusCommitted
	outcome.Additions = diff.Additions
	outcome.Deletions = diff.Deletions
	return outcome, nil
}

func buildMultiEditResult(outcomes []FileOutcome) *Result {
	committed := 0
	var sb strings.Builder
	for _, o := range outcomes {
		if o.Committed() {
			committed++
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", o.Status, o.File))
	}

	return &Result{
		Title:  fmt.Sprintf("Committed %d of %d files", committed, len(outcomes)),
		Output: sb.String(),
		Payload: map[string]any{
			"files":     outcomes,
			"committed": committed,
			"aborted":   len(outcomes) - committed,
		},
	}
}
