// Package supervisor runs the codex child process and relays its terminal.
//
// When the launcher's stdout is a terminal the child gets a pseudo-terminal
// and a single-threaded select loop forwards stdin to the PTY master and the
// master's output to both stdout and a capture log. Otherwise the child's
// stdout and stderr share one pipe that is teed the same way. The capture
// log is what the usage extractor later reads.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/term"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
)

// ExitCannotExecute is returned when the child could not be started.
const ExitCannotExecute = 127

// Mode selects how the child is attached.
type Mode int

const (
	// ModeAuto picks ModePTY when stdout is a terminal.
	ModeAuto Mode = iota
	// ModePTY attaches the child to a pseudo-terminal.
	ModePTY
	// ModePipe merges the child's stdout and stderr into one pipe.
	ModePipe
)

func (m Mode) String() string {
	switch m {
	case ModePTY:
		return "pty"
	case ModePipe:
		return "pipe"
	default:
		return "auto"
	}
}

// Session is one child invocation.
type Session struct {
	Binary string
	// Args are passed verbatim; callers build them with BuildArgs.
	Args        []string
	CapturePath string
}

// SessionRun describes a finished child.
type SessionRun struct {
	PID         int
	CapturePath string
	ExitCode    int
	Mode        Mode
}

// ProcessError is returned when the child cannot be executed at all.
type ProcessError struct {
	Binary string
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Supervisor launches and relays one child at a time.
type Supervisor struct {
	Stdin  *os.File
	Stdout io.Writer
	Mode   Mode
	logger *slog.Logger
}

// New returns a supervisor attached to the process's own stdio.
func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		logger: logging.Category(logger, "system"),
	}
}

// Interactive reports whether Stdout is a terminal.
func (s *Supervisor) Interactive() bool {
	f, ok := s.Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *Supervisor) mode() Mode {
	if s.Mode != ModeAuto {
		return s.Mode
	}
	if s.Interactive() {
		return ModePTY
	}
	return ModePipe
}

// Run starts the child and relays until it exits. The returned SessionRun
// is non-nil even when err is a *ProcessError, carrying ExitCannotExecute.
func (s *Supervisor) Run(ctx context.Context, sess Session) (*SessionRun, error) {
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	run := &SessionRun{CapturePath: sess.CapturePath, Mode: s.mode()}

	capture, closeCapture := s.openCapture(sess.CapturePath)
	defer closeCapture()
	out := &tee{stdout: s.Stdout, capture: capture, logger: s.logger}

	cmd := exec.CommandContext(ctx, sess.Binary, sess.Args...)

	var err error
	switch run.Mode {
	case ModePTY:
		err = s.runPTY(cmd, out)
		if errors.Is(err, errPTYUnsupported) {
			s.logger.Debug("pty unavailable; using pipe relay")
			run.Mode = ModePipe
			cmd = exec.CommandContext(ctx, sess.Binary, sess.Args...)
			err = s.runPipe(cmd, out)
		}
	default:
		err = s.runPipe(cmd, out)
	}
	if cmd.Process != nil {
		run.PID = cmd.Process.Pid
	}

	var pe *ProcessError
	if errors.As(err, &pe) {
		run.ExitCode = ExitCannotExecute
		return run, err
	}

	run.ExitCode = exitCode(cmd, err)
	if err != nil && run.ExitCode < 0 {
		run.ExitCode = 1
		return run, err
	}
	return run, nil
}

// openCapture opens the capture log. A log that cannot be created is
// replaced by a discarding writer so the session still runs.
func (s *Supervisor) openCapture(path string) (io.Writer, func()) {
	if path == "" {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		s.logger.Warn("capture log unavailable; usage will not be reported", "err", err)
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

// exitCode maps the wait result to the launcher's exit status. A child
// killed by a signal maps to 1. -1 means the wait itself failed.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	state := cmd.ProcessState
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 1
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	if waitErr != nil {
		return -1
	}
	return 1
}
