package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	text := []byte("x")
	write("b.pdf", text)
	write("a.txt", text)
	write("sub/c.docx", text)
	write("sub/d.exe", []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00, 0xff, 0xff})
	write("sub/notes.log", []byte("pump restarted at 06:00"))
	write("sub/empty.bin", nil)
	write(".hidden/e.txt", text)
	write(".f.txt", text)

	files, err := collectFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.docx"),
		filepath.Join(root, "sub", "notes.log"),
	}, files)

	_, err = collectFiles(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n b\t\tc", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"dir", "run", "search"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
