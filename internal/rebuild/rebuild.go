// Package rebuild runs the external tag-generation command.
package rebuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/phobologic/tagmonster/internal/config"
)

// ErrNoCommand is returned when no rebuild command is configured. It is a
// configuration error and matches config.ErrInvalid.
var ErrNoCommand = fmt.Errorf("%w: no rebuild command configured", config.ErrInvalid)

// maxOutput caps how much command output is kept for error reports.
const maxOutput = 8 << 10

// SubprocessError reports a command that could not be started or exited
// non-zero.
type SubprocessError struct {
	Command  string
	ExitCode int // -1 when the process never ran to completion
	Output   string
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("rebuild command %q failed", e.Command)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// Runner executes a command line through the system shell.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// Shell runs commands with sh -c (cmd /C on Windows).
type Shell struct {
	Dir    string    // Working directory; empty means the current one
	Stdout io.Writer // Optional tee for command output
	Logger *slog.Logger
}

// Run blocks until the command exits.
func (s *Shell) Run(ctx context.Context, command string) error {
	if strings.TrimSpace(command) == "" {
		return ErrNoCommand
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		name, flag = "cmd", "/C"
	}
	cmd := exec.CommandContext(ctx, name, flag, command)
	cmd.Dir = s.Dir

	out := &limitedBuffer{max: maxOutput}
	var w io.Writer = out
	if s.Stdout != nil {
		w = io.MultiWriter(out, s.Stdout)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	logger.Debug("rebuild.command.start", "command", command, "dir", s.Dir)
	err := cmd.Run()
	if err != nil {
		serr := &SubprocessError{Command: command, ExitCode: -1, Output: out.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			serr.ExitCode = exitErr.ExitCode()
		}
		logger.Warn("rebuild.command.failed", "command", command, "exit", serr.ExitCode, "elapsed", time.Since(start))
		return serr
	}
	logger.Debug("rebuild.command.done", "command", command, "elapsed", time.Since(start))
	return nil
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
