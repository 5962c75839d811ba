package shellproc

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/ryanhaqueIT/vibedeck/core"
	"pkt.systems/pslog"
)

// Factory opens one persistent shell per session on a pseudo-terminal.
// It implements core.ShellFactory.
type Factory struct {
	Binary string
	Logger pslog.Logger
}

// Open starts a login shell in the given working directory.
func (f *Factory) Open(ctx context.Context, workDir string) (core.ShellProcess, error) {
	binary := f.Binary
	if binary == "" {
		binary = os.Getenv("SHELL")
		if binary == "" {
			binary = "/bin/sh"
		}
	}
	cmd := exec.Command(binary, "-l")
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return nil, err
	}
	log := f.Logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	if log != nil && cmd.Process != nil {
		log.Info("shell started", "shell", binary, "pid", cmd.Process.Pid, "workdir", workDir)
	}
	shell := &Shell{cmd: cmd, file: ptmx, log: log}
	go shell.drain()
	return shell, nil
}

// Shell is one running shell process behind a pty. Writes are
// fire-and-forget; completion of individual commands is never tracked here.
type Shell struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	file   *os.File
	log    pslog.Logger
	closed bool
}

// Write sends input to the shell's terminal.
func (s *Shell) Write(ctx context.Context, input string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("shell closed")
	}
	_, err := s.file.WriteString(input)
	return err
}

// Resize updates the pty window size.
func (s *Shell) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("shell closed")
	}
	return pty.Setsize(s.file, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Close terminates the shell process and releases the pty.
func (s *Shell) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.file.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	if s.log != nil {
		s.log.Info("shell closed")
	}
	return err
}

// drain consumes pty output so the shell never blocks on a full buffer.
// Output rendering happens on the desktop surface, not here.
func (s *Shell) drain() {
	buf := make([]byte, 32*1024)
	for {
		if _, err := s.file.Read(buf); err != nil {
			return
		}
	}
}
