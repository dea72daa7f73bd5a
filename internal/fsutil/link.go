package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// maxLinkHops matches the usual ELOOP limit.
const maxLinkHops = 40

// ErrLinkLoop is returned when a chain of symlinks does not terminate.
var ErrLinkLoop = errors.New("too many levels of symbolic links")

// FollowLinks follows the symlink chain of the final path component and
// returns the path of the file it ends at, which may not exist yet. Parent
// directories are left as they are. Filesystems without symlink support
// return path unchanged.
func FollowLinks(afs afero.Fs, path string) (string, error) {
	lstater, ok := afs.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := afs.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	for range maxLinkHops {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		dest, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		path = filepath.Clean(dest)
	}
	return "", ErrLinkLoop
}

// Contains reports whether path, with every symlink followed, lies inside
// root. On the OS filesystem both sides are fully resolved; elsewhere only
// the final component's links are followed. A path that cannot be resolved
// is not contained.
func Contains(afs afero.Fs, root, path string) bool {
	if _, ok := afs.(*afero.OsFs); ok {
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			return false
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return false
		}
		return lexicallyWithin(resolvedRoot, resolved)
	}

	target, err := FollowLinks(afs, path)
	if err != nil {
		return false
	}
	return lexicallyWithin(root, target)
}

func lexicallyWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
