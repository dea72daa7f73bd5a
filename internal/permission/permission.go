// Package permission authorizes tool access to paths inside a session's
// working directory.
package permission

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// osFs is the filesystem validated paths live on. Checks always consult
// the real OS tree.
var osFs = afero.NewOsFs()

// Denial reasons.
const (
	ReasonOutside     = "outside working directory"
	ReasonProtected   = "protected path"
	ReasonNotWritable = "not writable"
)

// DefaultDenylist protects version-control internals and dotenv files.
var DefaultDenylist = []string{
	"**/.git",
	"**/.git/**",
	"**/.hg",
	"**/.hg/**",
	"**/.svn",
	"**/.svn/**",
	"**/.env",
}

// Decision is the outcome of one permission check. It is never persisted.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Path    string `json:"path"`
}

// Validator checks target paths against a session root. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	denylist []string
	access   func(path string) error
}

// NewValidator creates a validator with the given denylist patterns.
// Patterns are doublestar globs matched against the slash-separated path
// relative to the session root.
func NewValidator(denylist []string) (*Validator, error) {
	patterns := make([]string, 0, len(denylist))
	for _, p := range denylist {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid denylist pattern %q", p)
		}
		patterns = append(patterns, p)
	}
	return &Validator{denylist: patterns, access: writable}, nil
}

// FromConfig builds a validator from configuration. Configured patterns
// extend DefaultDenylist unless ReplaceDefaults is set.
func FromConfig(cfg *types.PermissionConfig) (*Validator, error) {
	patterns := append([]string(nil), DefaultDenylist...)
	if cfg != nil {
		if cfg.ReplaceDefaults {
			patterns = nil
		}
		patterns = append(patterns, cfg.Denylist...)
	}
	return NewValidator(patterns)
}

// Denylist returns the active patterns.
func (v *Validator) Denylist() []string {
	return append([]string(nil), v.denylist...)
}

func writable(path string) error {
	return unix.Access(path, unix.W_OK)
}

// Check decides whether op may touch target from the session rooted at
// workDir. Relative targets are joined to workDir. The decision's Path is
// the cleaned absolute target; for mutating operations on a symlink it is
// the file the link points to.
func (v *Validator) Check(workDir, target string, op types.SideEffect) Decision {
	root, err := filepath.Abs(workDir)
	if err != nil {
		return Decision{Reason: ReasonOutside, Path: target}
	}

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	lexical, ok := within(root, path)
	if !ok {
		return Decision{Reason: ReasonOutside, Path: path}
	}

	// Symlinks anywhere along the existing prefix must not lead out of the
	// root.
	resolvedRoot := resolveExisting(root)
	resolved, ok := within(resolvedRoot, resolveExisting(path))
	if !ok {
		return Decision{Reason: ReasonOutside, Path: path}
	}

	if op != types.Mutating {
		return Decision{Allowed: true, Path: path}
	}

	// A mutation through a symlink commits to the file the link names, so
	// that file is what gets authorized and returned.
	target, err = fsutil.FollowLinks(osFs, path)
	if err != nil {
		return Decision{Reason: ReasonNotWritable, Path: path}
	}
	if target != path {
		if resolved, ok = within(resolvedRoot, resolveExisting(target)); !ok {
			return Decision{Reason: ReasonOutside, Path: path}
		}
		path = target
	}

	if v.protected(lexical) || v.protected(resolved) {
		return Decision{Reason: ReasonProtected, Path: path}
	}
	if err := v.access(nearestExisting(path)); err != nil {
		return Decision{Reason: ReasonNotWritable, Path: path}
	}
	return Decision{Allowed: true, Path: path}
}

// Authorize is Check returning a PermissionDenied error on denial and the
// cleaned absolute path otherwise.
func (v *Validator) Authorize(workDir, target string, op types.SideEffect) (string, error) {
	d := v.Check(workDir, target, op)
	if !d.Allowed {
		return "", types.NewError(types.KindPermissionDenied, "%s", d.Reason).WithPath(d.Path)
	}
	return d.Path, nil
}

func (v *Validator) protected(rel string) bool {
	if rel == "." {
		return false
	}
	for _, pattern := range v.denylist {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// within returns path relative to root in slash form, and whether path lies
// inside root.
func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and re-appends the missing tail.
func resolveExisting(path string) string {
	var tail []string
	cur := path
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{resolved}, reverse(tail)...)
			return filepath.Join(parts...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// nearestExisting returns path or its closest existing ancestor.
func nearestExisting(path string) string {
	cur := path
	for {
		if _, err := os.Lstat(cur); !errors.Is(err, fs.ErrNotExist) {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur
		}
		cur = parent
	}
}
