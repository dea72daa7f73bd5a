package fsutil_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/toolrun/internal/fsutil"
	"github.com/opencode-ai/toolrun/pkg/types"
)

func TestReadRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789abcdef"), 0644))
	osFs := afero.NewOsFs()

	tests := []struct {
		name   string
		offset int64
		limit  int64
		want   string
	}{
		{"whole file", 0, -1, "0123456789abcdef"},
		{"prefix", 0, 4, "0123"},
		{"middle", 10, 3, "abc"},
		{"limit past end", 12, 100, "cdef"},
		{"offset past end", 50, 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := fsutil.ReadRange(context.Background(), osFs, path, tt.offset, tt.limit, 3, &buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestReadRange_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 1000), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := fsutil.ReadRange(ctx, afero.NewOsFs(), path, 0, -1, 10, &buf)
	assert.True(t, errors.Is(err, types.ErrCancelled))
	assert.Zero(t, buf.Len())
}

func TestReadRange_Missing(t *testing.T) {
	var buf bytes.Buffer
	_, err := fsutil.ReadRange(context.Background(), afero.NewOsFs(), filepath.Join(t.TempDir(), "nope"), 0, -1, 0, &buf)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestStatFile(t *testing.T) {
	dir := t.TempDir()
	osFs := afero.NewOsFs()

	_, err := fsutil.StatFile(osFs, dir)
	assert.True(t, errors.Is(err, types.ErrIsDirectory))

	_, err = fsutil.StatFile(osFs, filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	content := bytes.Repeat([]byte("line\n"), 20_000)
	require.NoError(t, os.WriteFile(path, content, 0644))

	data, err := fsutil.ReadFile(context.Background(), afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}
