package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeparatorLength(t *testing.T) {
	assert.Len(t, Separator, 20)
	assert.Equal(t, strings.Repeat("=", 20), Separator)
}

func TestFormat(t *testing.T) {
	got := Format(matrix.Matrix{{19, 22}, {43, 50}})

	assert.Equal(t, "19 22\n43 50\n"+Separator+"\n", got)
}

func TestFormat_SingleEntryAndNegative(t *testing.T) {
	assert.Equal(t, "7\n"+Separator+"\n", Format(matrix.Matrix{{7}}))
	assert.Equal(t, "-1 0\n"+Separator+"\n", Format(matrix.Matrix{{-1, 0}}))
}

func TestWriter_PreservesCallOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(matrix.Matrix{{1}}))
	// each record is visible before the next call
	assert.Equal(t, "1\n"+Separator+"\n", buf.String())

	require.NoError(t, w.Write(matrix.Matrix{{2}}))
	require.NoError(t, w.Close())

	assert.Equal(t, "1\n"+Separator+"\n2\n"+Separator+"\n", buf.String())
	assert.Equal(t, int64(2), w.Records())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriter_PropagatesErrors(t *testing.T) {
	w := NewWriter(failingWriter{})

	err := w.Write(matrix.Matrix{{1, 2}, {3, 4}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int64(0), w.Records())
}

func TestOpenFile_TruncateAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	w, err := OpenFile(path, FileOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Write(matrix.Matrix{{1}}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n"+Separator+"\n", string(data))

	open := FileOpener(path, FileOptions{Append: true})
	s, err := open()
	require.NoError(t, err)
	require.NoError(t, s.Write(matrix.Matrix{{2}}))
	require.NoError(t, s.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n"+Separator+"\n2\n"+Separator+"\n", string(data))
}

func TestOpenFile_MissingDirectory(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing", "out.txt"), FileOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
