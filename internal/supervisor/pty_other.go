//go:build !linux

package supervisor

import (
	"errors"
	"io"
	"os/exec"
)

var errPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")

func (s *Supervisor) runPTY(*exec.Cmd, io.Writer) error {
	return errPTYUnsupported
}
