package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// capture points the global logger at a buffer for the duration of a test.
func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		" INFO ":  InfoLevel,
		"Warning": WarnLevel,
		"warn":    WarnLevel,
		"ERROR":   ErrorLevel,
		"fatal":   FatalLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, WarnLevel)

	Debug().Msg("hidden")
	Info().Msg("hidden")
	Warn().Msg("shown")
	Error().Msg("shown")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "warn" || lines[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v", lines)
	}
	if _, ok := lines[0]["time"]; !ok {
		t.Error("expected a timestamp")
	}
}

func TestInvocationLogger(t *testing.T) {
	buf := capture(t, InfoLevel)

	logger := Invocation("ses_1", "call_1", "edit")
	logger.Info().Str("outcome", "success").Msg("tool invocation")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	for key, want := range map[string]string{"session": "ses_1", "call": "call_1", "tool": "edit", "outcome": "success"} {
		if lines[0][key] != want {
			t.Errorf("field %s = %v, want %s", key, lines[0][key], want)
		}
	}
}

func TestSessionLogger(t *testing.T) {
	buf := capture(t, InfoLevel)

	logger := Session("ses_9")
	logger.Info().Msg("session closed")

	lines := decodeLines(t, buf)
	if lines[0]["session"] != "ses_9" || lines[0]["message"] != "session closed" {
		t.Errorf("unexpected line: %v", lines[0])
	}
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("tool", "read").Msg("pretty message")

	out := buf.String()
	if !strings.Contains(out, "pretty message") || strings.HasPrefix(out, "{") {
		t.Errorf("expected console output, got %q", out)
	}
}

func TestFileOutput_Directory(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &console, File: dir})
	t.Cleanup(func() { Close(); Init(DefaultConfig()) })

	path := FilePath()
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "toolrun-") {
		t.Fatalf("unexpected log file %q", path)
	}

	Info().Msg("to both")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(console.String(), "to both") {
		t.Errorf("message missing: file=%q console=%q", data, console.String())
	}
}

func TestFileOutput_PathAndReinit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, File: path})
	t.Cleanup(func() { Close(); Init(DefaultConfig()) })

	if FilePath() != path {
		t.Fatalf("expected %s, got %s", path, FilePath())
	}

	// Re-initializing without a file releases the previous one.
	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}})
	if FilePath() != "" {
		t.Errorf("expected no log file, got %s", FilePath())
	}
}

func TestFileOutput_Unwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &console, File: filepath.Join(blocker, "sub", "x.log")})
	t.Cleanup(func() { Init(DefaultConfig()) })

	if FilePath() != "" {
		t.Errorf("expected no log file, got %s", FilePath())
	}
	if !strings.Contains(console.String(), "logging:") {
		t.Errorf("expected the failure on the console, got %q", console.String())
	}
}

func TestInitNilOutput(t *testing.T) {
	Init(Config{Level: InfoLevel})
	t.Cleanup(func() { Init(DefaultConfig()) })
	Info().Msg("goes to stderr")
}
