// Package fsutil holds the file primitives shared by the mutating tools and
// the session store: cancellable chunked reads and the stage-then-rename
// commit.
package fsutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// DefaultChunkSize bounds every read and write issued by this package.
const DefaultChunkSize = 32 * 1024

// DefaultFileMode is used for files that do not exist yet.
const DefaultFileMode os.FileMode = 0644

// AtomicWriter commits file contents with stage-then-rename: data is written
// to a temporary file in the target's directory, which is then renamed over
// the target. Readers observe either the old or the new content.
type AtomicWriter struct {
	fs        afero.Fs
	chunkSize int
}

// NewAtomicWriter creates a writer over fs.
func NewAtomicWriter(fs afero.Fs) *AtomicWriter {
	return &AtomicWriter{fs: fs, chunkSize: DefaultChunkSize}
}

// WithChunkSize returns a copy of w that writes in chunks of n bytes.
func (w *AtomicWriter) WithChunkSize(n int) *AtomicWriter {
	c := *w
	if n > 0 {
		c.chunkSize = n
	}
	return &c
}

// Fs returns the underlying filesystem.
func (w *AtomicWriter) Fs() afero.Fs {
	return w.fs
}

// WriteFile commits data to path. When path is a symlink the file it points
// to is replaced and the link is kept. ctx is checked before every chunk
// and once more before the rename; after the rename has started the commit
// is final. On any failure the temporary file is removed and path is left
// as it was.
func (w *AtomicWriter) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if ctx.Err() != nil {
		return types.CancelledError(ctx)
	}

	target, err := FollowLinks(w.fs, path)
	if err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot resolve symlink").WithPath(path)
	}
	path = target

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(w.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot stage file").WithPath(path)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = w.fs.Remove(tmpName)
		}
	}()

	if err := w.writeChunks(ctx, tmp, data); err != nil {
		tmp.Close()
		if types.KindOf(err) == types.KindCancelled {
			return err
		}
		return types.WrapError(types.KindIOFailure, err, "cannot write staged file").WithPath(path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return types.WrapError(types.KindIOFailure, err, "cannot flush staged file").WithPath(path)
	}
	if err := tmp.Close(); err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot close staged file").WithPath(path)
	}
	if err := w.fs.Chmod(tmpName, perm); err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot set file mode").WithPath(path)
	}

	if ctx.Err() != nil {
		return types.CancelledError(ctx)
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot commit file").WithPath(path)
	}
	committed = true
	return nil
}

func (w *AtomicWriter) writeChunks(ctx context.Context, f afero.File, data []byte) error {
	for len(data) > 0 {
		if ctx.Err() != nil {
			return types.CancelledError(ctx)
		}
		n := min(w.chunkSize, len(data))
		if _, err := f.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// ModeOf returns the permission bits of an existing file, or
// DefaultFileMode when it does not exist.
func ModeOf(fs afero.Fs, path string) os.FileMode {
	info, err := fs.Stat(path)
	if err != nil {
		return DefaultFileMode
	}
	return info.Mode().Perm()
}
