package rebuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/tagmonster/internal/config"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell syntax in these tests is POSIX")
	}
}

func TestShellRunSuccess(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)
	dir := t.TempDir()

	var out bytes.Buffer
	s := &Shell{Dir: dir, Stdout: &out}
	require.NoError(t, s.Run(context.Background(), "echo hello > made.txt && echo done"))

	data, err := os.ReadFile(filepath.Join(dir, "made.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, "done\n", out.String())
}

func TestShellRunNonZeroExit(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	err := (&Shell{}).Run(context.Background(), "echo boom >&2; exit 3")
	require.Error(t, err)

	var serr *SubprocessError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 3, serr.ExitCode)
	assert.Equal(t, "boom\n", serr.Output)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "boom")
}

func TestShellRunEmptyCommand(t *testing.T) {
	t.Parallel()
	err := (&Shell{}).Run(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoCommand)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestShellRunMissingDir(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	err := (&Shell{Dir: filepath.Join(t.TempDir(), "nope")}).Run(context.Background(), "true")
	var serr *SubprocessError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, -1, serr.ExitCode)
}

func TestShellOutputIsCapped(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	err := (&Shell{}).Run(context.Background(), "yes x | head -c 100000; exit 1")
	var serr *SubprocessError
	require.True(t, errors.As(err, &serr))
	assert.Len(t, serr.Output, maxOutput)
	assert.True(t, strings.HasPrefix(serr.Output, "x\nx\n"))
}
