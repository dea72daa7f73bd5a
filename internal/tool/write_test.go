package tool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/event"
	"github.com/opencode-ai/toolrun/internal/fsutil/fsutiltest"
	"github.com/opencode-ai/toolrun/pkg/types"
)

func TestWriteTool_Execute(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "output.txt")

	result, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath": testFile,
		"content":  "Hello, World!",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !strings.Contains(result.Output, "Successfully") {
		t.Error("Output should indicate success")
	}
	if result.Payload["created"] != true {
		t.Error("New file should be reported as created")
	}
	if result.Payload["bytes"] != len("Hello, World!") {
		t.Errorf("Unexpected bytes: %v", result.Payload["bytes"])
	}
	if got := readTestFile(t, testFile); got != "Hello, World!" {
		t.Errorf("File content = %q, want 'Hello, World!'", got)
	}
}

func TestWriteTool_CreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath": "subdir/nested/file.txt",
		"content":  "Nested content",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := readTestFile(t, filepath.Join(tmpDir, "subdir", "nested", "file.txt")); got != "Nested content" {
		t.Errorf("File content = %q, want 'Nested content'", got)
	}
}

func TestWriteTool_Overwrite(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "existing.txt")
	writeTestFile(t, testFile, "Original\n")
	if err := os.Chmod(testFile, 0600); err != nil {
		t.Fatal(err)
	}

	result, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{
		"filePath": "existing.txt",
		"content":  "Updated\n",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := readTestFile(t, testFile); got != "Updated\n" {
		t.Errorf("File should be overwritten, got %q", got)
	}
	if result.Payload["created"] != false {
		t.Error("Existing file should not be reported as created")
	}
	if result.Payload["additions"] != 1 || result.Payload["deletions"] != 1 {
		t.Errorf("Expected +1 -1, got +%v -%v", result.Payload["additions"], result.Payload["deletions"])
	}
	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode preserved as 0600, got %v", info.Mode().Perm())
	}
}

func TestWriteTool_DirectoryTarget(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, "dir"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{"filePath": "dir", "content": "x"})
	expectKind(t, err, types.KindIsDirectory)
}

func TestWriteTool_IOFailureLeavesTarget(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "keep.txt")
	writeTestFile(t, testFile, "original")

	fault := fsutiltest.New(afero.NewOsFs())
	fault.RenameErr = errors.New("input/output error")

	_, err := runTool(t, NewWriteTool(fault), tmpDir, map[string]any{"filePath": "keep.txt", "content": "replacement"})
	expectKind(t, err, types.KindIOFailure)

	if got := readTestFile(t, testFile); got != "original" {
		t.Errorf("Target must be untouched, got %q", got)
	}
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("Temporary file should be removed, found %d entries", len(entries))
	}
}

// A write cancelled mid-flight leaves either the prior or the full new
// content, never a mixture.
func TestWriteTool_CancelledMidWrite(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "target.txt")
	writeTestFile(t, testFile, "prior content")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fault := fsutiltest.New(afero.NewOsFs())
	fault.OnWrite = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	tool := NewWriteTool(fault)
	tool.writer = tool.writer.WithChunkSize(8)

	content := strings.Repeat("new content ", 100)
	params := map[string]any{"filePath": "target.txt", "content": content}
	_, err := tool.Execute(ctx, testCall(tmpDir, params))
	expectKind(t, err, types.KindCancelled)

	got := readTestFile(t, testFile)
	if got != "prior content" && got != content {
		t.Errorf("Target is corrupted: %q", got)
	}
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("Temporary file should be removed, found %d entries", len(entries))
	}
}

func TestWriteTool_FailureRemovesCreatedDirectories(t *testing.T) {
	failures := map[string]func(fault *fsutiltest.FaultFs, cancel context.CancelFunc){
		"io failure": func(fault *fsutiltest.FaultFs, _ context.CancelFunc) {
			fault.RenameErr = errors.New("input/output error")
		},
		"cancelled": func(fault *fsutiltest.FaultFs, cancel context.CancelFunc) {
			fault.OnWrite = func(int) { cancel() }
		},
	}
	wantKind := map[string]types.ErrorKind{"io failure": types.KindIOFailure, "cancelled": types.KindCancelled}

	for name, inject := range failures {
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeTestFile(t, filepath.Join(tmpDir, "a", "keep.txt"), "x")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			fault := fsutiltest.New(afero.NewOsFs())
			inject(fault, cancel)

			params := map[string]any{"filePath": "a/b/c/new.txt", "content": "hello"}
			_, err := NewWriteTool(fault).Execute(ctx, testCall(tmpDir, params))
			expectKind(t, err, wantKind[name])

			if _, err := os.Stat(filepath.Join(tmpDir, "a", "b")); !os.IsNotExist(err) {
				t.Errorf("Directories created for the failed write should be removed, stat err = %v", err)
			}
			if got := readTestFile(t, filepath.Join(tmpDir, "a", "keep.txt")); got != "x" {
				t.Errorf("Pre-existing content changed: %q", got)
			}
		})
	}
}

func TestWriteTool_ThroughSymlink(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "real.txt"), "old")
	if err := os.Symlink("real.txt", filepath.Join(tmpDir, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	if _, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{"filePath": "alias.txt", "content": "new"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := readTestFile(t, filepath.Join(tmpDir, "real.txt")); got != "new" {
		t.Errorf("Link target should hold the new content, got %q", got)
	}
	info, err := os.Lstat(filepath.Join(tmpDir, "alias.txt"))
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("alias.txt should still be a symlink (err=%v)", err)
	}
}

func TestWriteTool_LargePreviousContentSkipsPatch(t *testing.T) {
	tmpDir := t.TempDir()
	big := strings.Repeat("line\n", maxDiffBytes/5+10)
	writeTestFile(t, filepath.Join(tmpDir, "big.txt"), big)

	result, err := runTool(t, NewWriteTool(afero.NewOsFs()), tmpDir, map[string]any{"filePath": "big.txt", "content": "short\n"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Payload["diff"] != "" || result.Payload["diffSkipped"] != true {
		t.Errorf("Expected the patch to be skipped, got payload %v", result.Payload)
	}
	if got := readTestFile(t, filepath.Join(tmpDir, "big.txt")); got != "short\n" {
		t.Errorf("Unexpected content %q", got)
	}
}

func TestWriteTool_PublishesFileEdited(t *testing.T) {
	tmpDir := t.TempDir()

	received := make(chan event.FileEditedData, 1)
	unsub := event.Subscribe(event.FileEdited, func(e event.Event) {
		if data, ok := e.Data.(event.FileEditedData); ok && data.SessionID == "ses_write" {
			received <- data
		}
	})
	defer unsub()

	params := map[string]any{"filePath": "a/b.txt", "content": "x"}
	call := testCall(tmpDir, params)
	call.SessionID = "ses_write"
	if _, err := NewWriteTool(afero.NewOsFs()).Execute(context.Background(), call); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	select {
	case data := <-received:
		if data.File != filepath.Join("a", "b.txt") {
			t.Errorf("Expected relative path, got %q", data.File)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for file.edited")
	}
}

func TestWriteTool_InvalidInput(t *testing.T) {
	tool := NewWriteTool(afero.NewMemMapFs())

	for name, params := range map[string]map[string]any{
		"missing content": {"filePath": "a.txt"},
		"missing path":    {"content": "x"},
		"empty path":      {"filePath": "", "content": "x"},
		"content kind":    {"filePath": "a.txt", "content": 5},
	} {
		if err := tool.ValidateParameters(params); !errors.Is(err, types.ErrInvalidParameters) {
			t.Errorf("%s: expected InvalidParameters, got %v", name, err)
		}
	}
}
