package tool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffBytes caps either side of a diff. Larger contents are committed
// without a patch.
const maxDiffBytes = MaxReadBytes

// DiffSummary describes the change a mutating tool committed.
type DiffSummary struct {
	// Patch is a diff-match-patch patch, prefixed with file headers.
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`

	// Skipped is set when a side exceeded maxDiffBytes.
	Skipped bool `json:"skipped,omitempty"`
}

// payload adds the summary fields to a result payload.
func (d DiffSummary) payload(p map[string]any) map[string]any {
	p["diff"] = d.Patch
	p["additions"] = d.Additions
	p["deletions"] = d.Deletions
	if d.Skipped {
		p["diffSkipped"] = true
	}
	return p
}

// buildDiff calculates a line diff between before and after. Headers name
// path relative to baseDir.
func buildDiff(path, before, after, baseDir string) DiffSummary {
	if before == after {
		return DiffSummary{}
	}
	if len(before) > maxDiffBytes || len(after) > maxDiffBytes {
		return DiffSummary{Skipped: true}
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var summary DiffSummary
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			summary.Additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			summary.Deletions += countLines(d.Text)
		}
	}

	patchText := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if patchText == "" {
		return summary
	}

	var builder strings.Builder
	if rel := relativePath(path, baseDir); rel != "" {
		builder.WriteString(fmt.Sprintf("--- %s\n", rel))
		builder.WriteString(fmt.Sprintf("+++ %s\n", rel))
	}
	builder.WriteString(patchText)
	summary.Patch = builder.String()
	return summary
}

func relativePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
