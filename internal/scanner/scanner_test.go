package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestScan_FindsPythonFilesDeterministically(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.py", "x = 1\n")
	write(t, root, "a.py", "x = 1\n")
	write(t, root, "pkg/mod.py", "x = 1\n")
	write(t, root, "README.md", "docs")

	files, err := Scan(root)
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{"a.py", "b.py", "pkg/mod.py"}, rels)
}

func TestScan_SkipsJunkAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "x = 1\n")
	write(t, root, "__pycache__/main.cpython-312.py", "x = 1\n")
	write(t, root, ".venv/lib/thing.py", "x = 1\n")
	write(t, root, ".hidden/secret.py", "x = 1\n")

	files, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.py", files[0].RelPath)
}

func TestScan_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".gitignore", "generated/\nskipme.py\n")
	write(t, root, "kept.py", "x = 1\n")
	write(t, root, "skipme.py", "x = 1\n")
	write(t, root, "generated/out.py", "x = 1\n")

	files, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "kept.py", files[0].RelPath)
}

func TestIsPythonFile(t *testing.T) {
	assert.True(t, IsPythonFile("a.py"))
	assert.True(t, IsPythonFile("A.PY"))
	assert.False(t, IsPythonFile("a.pyc"))
	assert.False(t, IsPythonFile("a.go"))
}
