package toolbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEnvironmentReadWrite(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	require.NoError(t, env.WriteFile("sub/dir/hello.txt", "line one\nline two\nline three"))
	assert.True(t, env.FileExists("sub/dir/hello.txt"))
	assert.False(t, env.FileExists("missing.txt"))

	raw, err := env.ReadFileRaw("sub/dir/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", raw)

	numbered, err := env.ReadFile("sub/dir/hello.txt", 0, 0)
	require.NoError(t, err)
	assert.Contains(t, numbered, "1 | line one")
	assert.Contains(t, numbered, "3 | line three")
}

func TestLocalEnvironmentReadFileOffsetLimit(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())
	require.NoError(t, env.WriteFile("f.txt", "a\nb\nc\nd"))

	out, err := env.ReadFile("f.txt", 2, 2)
	require.NoError(t, err)
	assert.Contains(t, out, "2 | b")
	assert.Contains(t, out, "3 | c")
	assert.NotContains(t, out, "1 | a")
	assert.NotContains(t, out, "4 | d")

	// Offset past the end is empty, not an error.
	out, err = env.ReadFile("f.txt", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLocalEnvironmentRunCommand(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	res, err := env.RunCommand(context.Background(), "printf hello", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestLocalEnvironmentRunCommandExitCode(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	res, err := env.RunCommand(context.Background(), "exit 3", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestLocalEnvironmentRunCommandTimeout(t *testing.T) {
	env := NewLocalEnvironment(t.TempDir())

	res, err := env.RunCommand(context.Background(), "sleep 5", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestLocalEnvironmentGlob(t *testing.T) {
	dir := t.TempDir()
	env := NewLocalEnvironment(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))

	matches, err := env.Glob("*.go", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.go", matches[0])
}

func TestFilteredEnvironDropsSecrets(t *testing.T) {
	t.Setenv("SOMETHING_API_KEY", "hunter2")
	t.Setenv("HARMLESS_VALUE", "ok")

	var sawSecret, sawHarmless bool
	for _, kv := range filteredEnviron() {
		switch {
		case kv == "SOMETHING_API_KEY=hunter2":
			sawSecret = true
		case kv == "HARMLESS_VALUE=ok":
			sawHarmless = true
		}
	}
	assert.False(t, sawSecret)
	assert.True(t, sawHarmless)
}
