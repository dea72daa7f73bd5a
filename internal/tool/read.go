package tool

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// MaxReadBytes caps the content returned by a single read call.
const MaxReadBytes = 1 << 20

// ReadDescriptor describes the read tool.
var ReadDescriptor = types.ToolDescriptor{
	Name: "read",
	Description: `Reads a file from the session's working directory.

Usage:
- filePath may be relative to the working directory or absolute inside it
- offset and limit select a byte range; at most 1 MiB is returned per call
- When the result is truncated, call again with offset set to nextOffset
- Content that is not valid UTF-8 is returned base64-encoded`,
	Parameters: []types.ParamSpec{
		{Name: "filePath", Kind: types.KindString, Required: true, Description: "The path to the file to read"},
		{Name: "offset", Kind: types.KindInteger, Description: "Byte offset to start reading from"},
		{Name: "limit", Kind: types.KindInteger, Description: "Maximum number of bytes to read (default and cap: 1 MiB)"},
	},
	SideEffect: types.ReadOnly,
}

// ReadTool implements streaming file reads.
type ReadTool struct {
	fs        afero.Fs
	chunkSize int
}

// ReadInput represents the input for the read tool.
type ReadInput struct {
	FilePath string `json:"filePath"`
	Offset   int64  `json:"offset,omitempty"`
	Limit    int64  `json:"limit,omitempty"`
}

// NewReadTool creates a new read tool.
func NewReadTool(fs afero.Fs) *ReadTool {
	return &ReadTool{fs: fs, chunkSize: fsutil.DefaultChunkSize}
}

func (t *ReadTool) Describe() types.ToolDescriptor { return ReadDescriptor }

func (t *ReadTool) ValidateParameters(params map[string]any) error {
	if err := ValidateAgainst(ReadDescriptor, params); err != nil {
		return err
	}
	if stringParam(params, "filePath") == "" {
		return types.NewError(types.KindInvalidParameters, "filePath must not be empty")
	}
	for _, name := range []string{"offset", "limit"} {
		if v, ok := params[name]; ok && v != nil {
			if n, _ := asInt(v); n < 0 {
				return types.NewError(types.KindInvalidParameters, "%s must not be negative", name)
			}
		}
	}
	return nil
}

func (t *ReadTool) Targets(params map[string]any) []Target {
	return []Target{{Param: "filePath", Path: stringParam(params, "filePath")}}
}

func (t *ReadTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	var params ReadInput
	if err := decodeParams(call.Params, &params); err != nil {
		return nil, err
	}

	path := call.Resolve(params.FilePath)
	info, err := fsutil.StatFile(t.fs, path)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 || limit > MaxReadBytes {
		limit = MaxReadBytes
	}

	var buf bytes.Buffer
	n, err := fsutil.ReadRange(ctx, t.fs, path, params.Offset, limit, t.chunkSize, &buf)
	if err != nil {
		return nil, err
	}

	end := params.Offset + n
	truncated := end < info.Size()

	payload := map[string]any{
		"file":      call.Rel(path),
		"offset":    params.Offset,
		"bytes":     n,
		"size":      info.Size(),
		"truncated": truncated,
	}
	if truncated {
		payload["nextOffset"] = end
	}

	output := buf.String()
	if utf8.Valid(buf.Bytes()) {
		payload["content"] = output
	} else {
		payload["content"] = base64.StdEncoding.EncodeToString(buf.Bytes())
		payload["encoding"] = "base64"
		output = fmt.Sprintf("(binary content, %d bytes)", n)
	}
	if truncated {
		output += fmt.Sprintf("\n\n(File has more content. Use 'offset' %d to continue)", end)
	}

	return &Result{
		Title:   fmt.Sprintf("Read %s", filepath.Base(path)),
		Output:  output,
		Payload: payload,
	}, nil
}
