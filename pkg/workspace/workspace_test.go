package workspace

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnore_Match(t *testing.T) {
	ig, err := NewIgnore([]string{"data", "*.ckpt", "logs/**/*.txt", "./build/"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"main.py", false},
		{"data", true},
		{"data/train.csv", true},
		{"src/data/x.csv", true},
		{"model.ckpt", true},
		{"runs/a/model.ckpt", true},
		{"logs/2019/04/out.txt", true},
		{"logs/out.json", false},
		{"build/out.bin", true},
		{".git/HEAD", true},
		{".pspace/state.json", true},
		{"pspace.yaml", false},
		{"src\\model.ckpt", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ig.Match(tt.path), tt.path)
	}
}

func TestNewIgnore_InvalidPattern(t *testing.T) {
	_, err := NewIgnore([]string{"data[", "ok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	var pe *PatternError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "data[", pe.Pattern)
}

func TestNewIgnore_Defaults(t *testing.T) {
	ig, err := NewIgnore([]string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, DefaultIgnores, ig.Patterns())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestPack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hi')\n")
	writeFile(t, root, "pkg/util.py", "x = 1\n")
	writeFile(t, root, "data/big.bin", strings.Repeat("x", 1024))
	writeFile(t, root, "model.ckpt", "weights")
	writeFile(t, root, ".pspace/state.json", "{}")

	ig, err := NewIgnore([]string{"data", "*.ckpt"})
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := Pack(context.Background(), root, ig, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(len("print('hi')\n")+len("x = 1\n")), stats.Bytes)
	assert.Equal(t, 3, stats.Skipped)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"main.py", "pkg/util.py"}, names)
}

func TestPack_NotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", "x")

	_, err := Pack(context.Background(), filepath.Join(root, "file.txt"), nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPack_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, root, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveName(t *testing.T) {
	name := ArchiveName("/home/me/my project")
	assert.True(t, strings.HasPrefix(name, "my_project-"), name)
	assert.True(t, strings.HasSuffix(name, ".zip"), name)
	assert.NotEqual(t, name, ArchiveName("/home/me/my project"))
}
