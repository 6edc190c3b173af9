package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_Creates(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "site.db")

	got, err := EnsureParentDir(target)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	info, err := os.Stat(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err), "the file itself is not created")
}

func TestEnsureParentDir_Relative(t *testing.T) {
	t.Chdir(t.TempDir())

	got, err := EnsureParentDir(filepath.Join("data", "cs.db"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	info, err := os.Stat("data")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureParentDir_BlockedByFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := EnsureParentDir(filepath.Join(blocker, "sub", "cs.db"))
	assert.Error(t, err)
}
