package supervisor

import (
	"io"
	"log/slog"
)

// tee copies each chunk to the terminal and the capture log independently.
// A failing terminal does not stop the capture, and the reverse.
type tee struct {
	stdout  io.Writer
	capture io.Writer
	logger  *slog.Logger

	stdoutErr  error
	captureErr error
}

func (t *tee) Write(p []byte) (int, error) {
	if t.stdoutErr == nil {
		if _, err := t.stdout.Write(p); err != nil {
			t.stdoutErr = err
			t.logger.Debug("stdout write failed; capture continues", "err", err)
		}
	}
	if t.captureErr == nil {
		if _, err := t.capture.Write(p); err != nil {
			t.captureErr = err
			t.logger.Warn("capture log write failed; usage may be incomplete", "err", err)
		}
	}
	return len(p), nil
}
