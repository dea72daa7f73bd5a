package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/pkg/types"
)

func TestListTool_Execute(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "file1.txt"), "hello")
	writeTestFile(t, filepath.Join(tmpDir, "subdir", "inner.txt"), "x")
	writeTestFile(t, filepath.Join(tmpDir, "node_modules", "pkg", "index.js"), "x")

	result, err := runTool(t, NewListTool(afero.NewOsFs()), tmpDir, map[string]any{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !strings.Contains(result.Output, "[file] file1.txt (5 bytes)") {
		t.Errorf("Output should list file1.txt with size, got: %s", result.Output)
	}
	if !strings.Contains(result.Output, "[dir ] subdir") {
		t.Errorf("Output should list subdir, got: %s", result.Output)
	}
	if strings.Contains(result.Output, "node_modules") {
		t.Error("node_modules should be ignored by default")
	}
	if result.Payload["count"] != 2 {
		t.Errorf("Expected 2 entries, got %v", result.Payload["count"])
	}
	entries, ok := result.Payload["entries"].([]ListEntry)
	if !ok || len(entries) != 2 {
		t.Fatalf("Unexpected entries payload: %#v", result.Payload["entries"])
	}
}

func TestListTool_RelativePathAndIgnore(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "src", "main.go"), "package main")
	writeTestFile(t, filepath.Join(tmpDir, "src", "main_test.go"), "package main")

	result, err := runTool(t, NewListTool(afero.NewOsFs()), tmpDir, map[string]any{
		"path":   "src",
		"ignore": []any{"*_test.go"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "main.go") || strings.Contains(result.Output, "main_test.go") {
		t.Errorf("Unexpected output: %s", result.Output)
	}
	if result.Payload["path"] != "src" {
		t.Errorf("Expected relative path, got %v", result.Payload["path"])
	}
}

func TestListTool_DirectoryNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := runTool(t, NewListTool(afero.NewOsFs()), tmpDir, map[string]any{"path": "missing"})
	expectKind(t, err, types.KindNotFound)
}

func TestListTool_NotADirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "file.txt"), "x")

	_, err := runTool(t, NewListTool(afero.NewOsFs()), tmpDir, map[string]any{"path": "file.txt"})
	expectKind(t, err, types.KindInvalidParameters)
}

func TestListTool_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := runTool(t, NewListTool(afero.NewOsFs()), tmpDir, map[string]any{"path": "empty"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Title != "Listed 0 items" {
		t.Errorf("Unexpected title: %q", result.Title)
	}
}

func TestListTool_Targets(t *testing.T) {
	tool := NewListTool(afero.NewMemMapFs())
	if got := tool.Targets(map[string]any{}); got[0].Path != "." {
		t.Errorf("Default target should be the working directory, got %+v", got)
	}
	if got := tool.Targets(map[string]any{"path": "../x"}); got[0].Path != "../x" {
		t.Errorf("Unexpected target: %+v", got)
	}
}

func TestIgnoreSet(t *testing.T) {
	set := ignoreSet{patterns: []string{"*.log", "fixtures/"}}
	tests := []struct {
		name  string
		isDir bool
		want  bool
	}{
		{"node_modules", true, true},
		{"node_modules", false, false},
		{"zig-out", true, true},
		{"main.go", false, false},
		{"debug.log", false, true},
		{"fixtures", true, true},
		{"fixtures", false, false},
	}

	for _, tt := range tests {
		if got := set.skip(tt.name, tt.isDir); got != tt.want {
			t.Errorf("skip(%q, dir=%v) = %v, want %v", tt.name, tt.isDir, got, tt.want)
		}
	}
}

func TestListTool_InvalidIgnorePattern(t *testing.T) {
	tool := NewListTool(afero.NewMemMapFs())
	for _, ignore := range [][]any{{42}, {"[abc"}} {
		err := tool.ValidateParameters(map[string]any{"ignore": ignore})
		expectKind(t, err, types.KindInvalidParameters)
	}
}
