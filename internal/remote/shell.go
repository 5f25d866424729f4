package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

const (
	DefaultTerm = "xterm-256color"
	DefaultRows = 24
	DefaultCols = 80
)

// ShellClient is a live SSH transport used for interactive shells and
// one-shot commands. Every shell and every command gets its own channel.
type ShellClient interface {
	OpenShell(term string, rows, cols int) (Shell, error)
	Exec(ctx context.Context, command string) (ExecResult, error)
	Close() error
	Wait() error
}

// Shell is one PTY-backed shell channel. Read returns stdout and stderr
// merged in arrival order and io.EOF once the shell exits.
type Shell interface {
	io.ReadWriteCloser
	Resize(rows, cols int) error
}

// ExecResult holds the collected output of a command. Code is nil when the
// remote side closed the channel without reporting an exit status.
type ExecResult struct {
	Stdout string
	Stderr string
	Code   *int
}

type sshShells struct {
	client *ssh.Client
}

func (c *sshShells) Close() error { return c.client.Close() }
func (c *sshShells) Wait() error  { return c.client.Wait() }

func (c *sshShells) OpenShell(term string, rows, cols int) (Shell, error) {
	if term == "" {
		term = DefaultTerm
	}
	if rows <= 0 || cols <= 0 {
		rows, cols = DefaultRows, DefaultCols
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term, rows, cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	output, sink := io.Pipe()
	session.Stdout = sink
	session.Stderr = sink

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	go func() {
		sink.CloseWithError(shellEnd(session.Wait()))
	}()

	return &sshShell{session: session, stdin: stdin, output: output}, nil
}

// shellEnd maps the outcome of a shell session to the error its readers
// see. Any exit of the remote process, whatever its status, is a plain EOF.
// Only transport failures surface as errors.
func shellEnd(err error) error {
	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	if err == nil || errors.As(err, &exitErr) || errors.As(err, &missing) {
		return io.EOF
	}
	return err
}

type sshShell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	output  *io.PipeReader

	closeOnce sync.Once
	closeErr  error
}

func (s *sshShell) Read(p []byte) (int, error)  { return s.output.Read(p) }
func (s *sshShell) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *sshShell) Resize(rows, cols int) error {
	return s.session.WindowChange(rows, cols)
}

func (s *sshShell) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = CloseAll(s.session, s.output)
	})
	return s.closeErr
}

// Exec runs command on a fresh channel and waits for it to finish.
// Cancelling ctx closes the channel.
func (c *sshShells) Exec(ctx context.Context, command string) (ExecResult, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return ExecResult{}, fmt.Errorf("create ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	stop := context.AfterFunc(ctx, func() { session.Close() })
	defer stop()

	runErr := session.Run(command)
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case runErr == nil:
		code := 0
		result.Code = &code
	case errors.As(runErr, &exitErr):
		code := exitErr.ExitStatus()
		result.Code = &code
	case errors.As(runErr, &missingErr):
	default:
		return result, fmt.Errorf("run command: %w", runErr)
	}
	return result, nil
}
