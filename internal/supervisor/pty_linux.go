//go:build linux

package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

var errPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")

// eot is written to the master when a non-terminal stdin reaches EOF so
// the child's read sees end of input.
const eot = 0x04

// runPTY starts cmd on a new pseudo-terminal and relays until the master
// reports EOF or EIO.
func (s *Supervisor) runPTY(cmd *exec.Cmd, out io.Writer) error {
	master, slavePath, err := openPTY()
	if err != nil {
		return fmt.Errorf("allocate PTY: %w", err)
	}
	defer master.Close()

	slave, err := os.OpenFile(slavePath, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("open PTY slave %s: %w", slavePath, err)
	}

	masterFd := int(master.Fd())
	stdinFd := -1
	if s.Stdin != nil {
		stdinFd = int(s.Stdin.Fd())
	}
	stdinTTY := stdinFd >= 0 && term.IsTerminal(stdinFd)

	if stdinTTY {
		copyWindowSize(stdinFd, masterFd)
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		slave.Close()
		return &ProcessError{Binary: cmd.Path, Err: err}
	}
	// The child holds its own copies on fds 0-2.
	slave.Close()

	if stdinTTY {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			s.logger.Debug("raw mode unavailable", "err", err)
		} else {
			defer term.Restore(stdinFd, oldState)
		}

		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		stop := make(chan struct{})
		defer func() {
			signal.Stop(winch)
			close(stop)
		}()
		go func() {
			for {
				select {
				case <-winch:
					copyWindowSize(stdinFd, masterFd)
				case <-stop:
					return
				}
			}
		}()
	}

	if err := s.relay(stdinFd, stdinTTY, masterFd, out); err != nil {
		s.logger.Debug("relay stopped", "err", err)
	}
	return cmd.Wait()
}

// relay multiplexes stdin and the PTY master with select. Interrupted
// selects are retried. It returns nil once the master side closes.
func (s *Supervisor) relay(stdinFd int, stdinTTY bool, masterFd int, out io.Writer) error {
	buf := make([]byte, 4096)
	watchStdin := stdinFd >= 0

	for {
		var readers unix.FdSet
		readers.Zero()
		readers.Set(masterFd)
		nfd := masterFd
		if watchStdin {
			readers.Set(stdinFd)
			nfd = max(nfd, stdinFd)
		}

		if _, err := unix.Select(nfd+1, &readers, nil, nil, nil); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("select: %w", err)
		}

		if watchStdin && readers.IsSet(stdinFd) {
			n, err := unix.Read(stdinFd, buf)
			switch {
			case n > 0:
				if err := writeFull(masterFd, buf[:n]); err != nil {
					return fmt.Errorf("write to PTY: %w", err)
				}
			case err == nil || !retryable(err):
				watchStdin = false
				if !stdinTTY {
					writeFull(masterFd, []byte{eot})
				}
			}
		}

		if readers.IsSet(masterFd) {
			n, err := unix.Read(masterFd, buf)
			if n > 0 {
				if _, werr := out.Write(buf[:n]); werr != nil {
					s.logger.Debug("relay write failed", "err", werr)
				}
				continue
			}
			if err != nil && retryable(err) {
				continue
			}
			// EOF or EIO: every slave descriptor is closed.
			return nil
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

func writeFull(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if err != nil {
			if retryable(err) {
				continue
			}
			return err
		}
		p = p[n:]
	}
	return nil
}

// openPTY allocates a PTY master/slave pair using the Linux devpts interface.
// Returns the master as an *os.File and the filesystem path to the slave.
func openPTY() (master *os.File, slavePath string, err error) {
	master, err = os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", errPTYUnsupported
		}
		return nil, "", fmt.Errorf("open /dev/ptmx: %w", err)
	}

	fd := int(master.Fd())

	ptyNumber, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, "", fmt.Errorf("get PTY number (TIOCGPTN): %w", err)
	}

	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, "", fmt.Errorf("unlock PTY slave (TIOCSPTLCK): %w", err)
	}

	slavePath = fmt.Sprintf("/dev/pts/%d", ptyNumber)
	return master, slavePath, nil
}

// copyWindowSize copies the terminal dimensions of from onto the PTY master.
// Setting TIOCSWINSZ delivers SIGWINCH to the child's process group.
func copyWindowSize(from, masterFd int) {
	ws, err := unix.IoctlGetWinsize(from, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return
	}
	unix.IoctlSetWinsize(masterFd, unix.TIOCSWINSZ, ws)
}
