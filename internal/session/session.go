// Package session owns the language server subprocess: spawning it with its
// three pipes redirected, watching for exit, and reporting the exit status.
//
// The session deliberately knows nothing about JSON-RPC. It hands its pipes to
// the transport layer and the pumps; its own job ends at process lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// SpawnError reports a subprocess that could not be started (binary missing,
// permission denied). It is fatal to the session and never retried.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Session is a running language server process and its pipes.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	exitCh chan error
}

// Spawn launches command with args, with stdin, stdout and stderr all piped.
// The process is killed if ctx is cancelled.
func Spawn(ctx context.Context, command string, args ...string) (*Session, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, &SpawnError{Command: command, Err: err}
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		exitCh: make(chan error, 1),
	}
	go s.monitor()
	return s, nil
}

// monitor waits for the process and publishes its exit status once.
func (s *Session) monitor() {
	s.exitCh <- s.cmd.Wait()
	close(s.exitCh)
}

// Stdin is the write side of the child's standard input.
func (s *Session) Stdin() io.WriteCloser { return s.stdin }

// Stdout is the read side of the child's standard output.
func (s *Session) Stdout() io.Reader { return s.stdout }

// Stderr is the read side of the child's standard error.
func (s *Session) Stderr() io.Reader { return s.stderr }

// CloseStdin closes the child's stdin. A well-behaved server treats the EOF
// as a shutdown signal even if it ignored the exit notification.
func (s *Session) CloseStdin() error {
	return s.stdin.Close()
}

// Wait blocks until the child exits and returns its status. A non-zero exit
// is reported as ExitStatus.Err but is not an application error: the server
// may have been told to exit deliberately.
func (s *Session) Wait() ExitStatus {
	err := <-s.exitCh
	return exitStatus(err)
}

// Kill forcibly terminates the child. Normal teardown is didClose/exit plus
// stdin EOF; Kill is for a server that ignores both.
func (s *Session) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}

// Pid returns the child's process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitStatus describes how the child exited.
type ExitStatus struct {
	Code int
	Err  error
}

// Clean reports a normal zero exit.
func (st ExitStatus) Clean() bool { return st.Err == nil && st.Code == 0 }

func (st ExitStatus) String() string {
	if st.Clean() {
		return "exited cleanly"
	}
	if st.Code >= 0 {
		return fmt.Sprintf("exited with status %d", st.Code)
	}
	return fmt.Sprintf("exited abnormally: %v", st.Err)
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode(), Err: err}
	}
	return ExitStatus{Code: -1, Err: err}
}
