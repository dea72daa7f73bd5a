package fsutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// Stat stats path, mapping a missing file to NotFound.
func Stat(afs afero.Fs, path string) (os.FileInfo, error) {
	info, err := afs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewError(types.KindNotFound, "file does not exist").WithPath(path)
		}
		return nil, types.WrapError(types.KindIOFailure, err, "cannot stat file").WithPath(path)
	}
	return info, nil
}

// StatFile is Stat that additionally rejects directories with IsDirectory.
func StatFile(afs afero.Fs, path string) (os.FileInfo, error) {
	info, err := Stat(afs, path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, types.NewError(types.KindIsDirectory, "path is a directory, not a file").WithPath(path)
	}
	return info, nil
}

// ReadRange copies up to limit bytes of path, starting at offset, into w.
// A negative limit reads to the end of the file. The file is read in chunks
// of at most chunkSize bytes and ctx is checked before each chunk.
func ReadRange(ctx context.Context, afs afero.Fs, path string, offset, limit int64, chunkSize int, w io.Writer) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := afs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, types.NewError(types.KindNotFound, "file does not exist").WithPath(path)
		}
		return 0, types.WrapError(types.KindIOFailure, err, "cannot open file").WithPath(path)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, types.WrapError(types.KindIOFailure, err, "cannot seek").WithPath(path)
		}
	}

	buf := make([]byte, chunkSize)
	var total int64
	for limit < 0 || total < limit {
		if ctx.Err() != nil {
			return total, types.CancelledError(ctx)
		}

		want := int64(len(buf))
		if limit >= 0 {
			want = min(want, limit-total)
		}
		n, rerr := f.Read(buf[:want])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, types.WrapError(types.KindIOFailure, werr, "cannot copy file content").WithPath(path)
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return total, types.WrapError(types.KindIOFailure, rerr, "cannot read file").WithPath(path)
		}
	}
	return total, nil
}

// ReadFile loads a whole regular file with ReadRange.
func ReadFile(ctx context.Context, afs afero.Fs, path string) ([]byte, error) {
	info, err := StatFile(afs, path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(info.Size()))
	if _, err := ReadRange(ctx, afs, path, 0, -1, DefaultChunkSize, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
