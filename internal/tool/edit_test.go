package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// stripDiffHeaders returns the patch body of a DiffSummary patch.
func stripDiffHeaders(patch string) string {
	for _, prefix := range []string{"--- ", "+++ "} {
		if strings.HasPrefix(patch, prefix) {
			if idx := strings.IndexByte(patch, '\n'); idx >= 0 {
				patch = patch[idx+1:]
			}
		}
	}
	return patch
}

func TestEditTool_Execute(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "edit.txt")
	original := "package main\n\nfunc main() {\n\tprintln(\"Hello World\")\n}\n"
	writeTestFile(t, testFile, original)

	result, err := runTool(t, NewEditTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath":  "edit.txt",
		"oldString": "Hello World",
		"newString": "Hello Go",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !strings.Contains(result.Output, "Replaced") {
		t.Errorf("Output should mention 'Replaced', got: %s", result.Output)
	}

	edited := readTestFile(t, testFile)
	if edited != strings.Replace(original, "Hello World", "Hello Go", 1) {
		t.Errorf("Unexpected content: %q", edited)
	}

	if result.Payload["additions"] != 1 || result.Payload["deletions"] != 1 {
		t.Errorf("Expected +1 -1, got +%v -%v", result.Payload["additions"], result.Payload["deletions"])
	}

	// The reported diff reproduces the edit when applied to the original.
	patch, _ := result.Payload["diff"].(string)
	if !strings.HasPrefix(patch, "--- edit.txt\n+++ edit.txt\n") {
		t.Errorf("Diff should carry relative headers, got %q", patch)
	}
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(stripDiffHeaders(patch))
	if err != nil {
		t.Fatalf("Diff is not a valid patch: %v", err)
	}
	applied, ok := dmp.PatchApply(patches, original)
	for i, hunk := range ok {
		if !hunk {
			t.Errorf("Hunk %d did not apply", i)
		}
	}
	if applied != edited {
		t.Errorf("Patched original = %q, want %q", applied, edited)
	}
}

func TestEditTool_NoMatchLeavesFileIdentical(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		oldString string
		reason    string
	}{
		{"absent", "alpha\nbeta\ngamma\n", "delta", "not found"},
		{"absent with hint", "func handleRequest() {}\n", "func handleRequests() {}", "closest match at line 1"},
		{"ambiguous", "foo bar foo baz\n", "foo", "found 2 times"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			testFile := filepath.Join(tmpDir, "f.txt")
			writeTestFile(t, testFile, tt.content)

			_, err := runTool(t, NewEditTool(afero.NewOsFs()), tmpDir, map[string]any{
				"filePath":  "f.txt",
				"oldString": tt.oldString,
				"newString": "replacement",
			})
			expectKind(t, err, types.KindNoMatch)
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("Expected reason containing %q, got %v", tt.reason, err)
			}
			if got := readTestFile(t, testFile); got != tt.content {
				t.Errorf("File changed on NoMatch: %q", got)
			}
		})
	}
}

func TestEditTool_ThroughSymlinkEditsTarget(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "real.txt"), "hello world")
	if err := os.Symlink("real.txt", filepath.Join(tmpDir, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	_, err := runTool(t, NewEditTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath":  "alias.txt",
		"oldString": "hello",
		"newString": "bye",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := readTestFile(t, filepath.Join(tmpDir, "real.txt")); got != "bye world" {
		t.Errorf("Edit should reach the link target, got %q", got)
	}
	info, err := os.Lstat(filepath.Join(tmpDir, "alias.txt"))
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("alias.txt should still be a symlink (err=%v)", err)
	}
}

func TestEditTool_FileNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := runTool(t, NewEditTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath":  "missing.txt",
		"oldString": "a",
		"newString": "b",
	})
	expectKind(t, err, types.KindNotFound)
}

func TestEditTool_InvalidInput(t *testing.T) {
	tool := NewEditTool(afero.NewMemMapFs())

	for name, params := range map[string]map[string]any{
		"missing newString": {"filePath": "a", "oldString": "x"},
		"empty oldString":   {"filePath": "a", "oldString": "", "newString": "y"},
		"identical strings": {"filePath": "a", "oldString": "x", "newString": "x"},
	} {
		if err := tool.ValidateParameters(params); types.KindOf(err) != types.KindInvalidParameters {
			t.Errorf("%s: expected InvalidParameters, got %v", name, err)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if similarity("", "") != 1.0 {
		t.Error("Empty strings should be identical")
	}
	if similarity("abc", "") != 0.0 {
		t.Error("Empty vs non-empty should be 0")
	}
	if sim := similarity("kitten", "sitting"); sim < 0.5 || sim > 0.6 {
		t.Errorf("Unexpected similarity %f", sim)
	}
}

func TestClosestLine(t *testing.T) {
	text := "one\ntwo\nthree hundred\nfour\n"
	line, sim := closestLine(text, "three hundreds")
	if line != 3 {
		t.Errorf("Expected line 3, got %d", line)
	}
	if sim < 0.9 {
		t.Errorf("Expected high similarity, got %f", sim)
	}
}
