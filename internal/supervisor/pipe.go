package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// runPipe starts cmd with stdout and stderr on one pipe and copies the pipe
// to out until EOF.
func (s *Supervisor) runPipe(cmd *exec.Cmd, out io.Writer) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}
	defer r.Close()

	if s.Stdin != nil {
		cmd.Stdin = s.Stdin
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		w.Close()
		return &ProcessError{Binary: cmd.Path, Err: err}
	}
	w.Close()

	buf := make([]byte, 4096)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				s.logger.Debug("relay write failed", "err", err)
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				s.logger.Debug("relay read failed", "err", rerr)
			}
			break
		}
	}

	return cmd.Wait()
}
