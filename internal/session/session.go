// Package session keeps the registry of live browser sessions and the
// remote transports each one owns.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"remote-finder/internal/models"
	"remote-finder/internal/remote"
)

var (
	// ErrUnauthorized is the only error a token lookup produces, whether the
	// token never existed or the session has gone.
	ErrUnauthorized = errors.New("invalid or expired session")
	ErrClosed       = errors.New("session closed")
)

type CloseReason string

const (
	ReasonDisconnect CloseReason = "disconnect"
	ReasonIdle       CloseReason = "idle"
	ReasonTransport  CloseReason = "transport"
	ReasonShutdown   CloseReason = "shutdown"
)

// SSHState tracks the lazily opened shell transport.
type SSHState int

const (
	SSHUnopened SSHState = iota
	SSHOpening
	SSHReady
	SSHClosed
)

func (s SSHState) String() string {
	switch s {
	case SSHUnopened:
		return "unopened"
	case SSHOpening:
		return "opening"
	case SSHReady:
		return "ready"
	case SSHClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ShellDialer opens a shell transport for the given credentials.
type ShellDialer func(ctx context.Context, creds remote.Credentials) (remote.ShellClient, error)

type Session struct {
	Token     string
	ID        uuid.UUID
	Remote    remote.Credentials
	CreatedAt time.Time

	files    remote.FileClient
	lastUsed atomic.Int64

	dial singleflight.Group

	mu     sync.Mutex
	state  SSHState
	shell  remote.ShellClient
	shells map[uuid.UUID]io.Closer

	closeOnce sync.Once
	closeErr  error
}

func newSession(token string, creds remote.Credentials, files remote.FileClient, now time.Time) *Session {
	s := &Session{
		Token:     token,
		ID:        uuid.New(),
		Remote:    creds,
		CreatedAt: now,
		files:     files,
		shells:    make(map[uuid.UUID]io.Closer),
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// Files returns the session's SFTP transport.
func (s *Session) Files() remote.FileClient {
	return s.files
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Touch moves the last-used time forward to now. Older timestamps are
// ignored so the value never decreases.
func (s *Session) Touch(now time.Time) {
	next := now.UnixNano()
	for {
		cur := s.lastUsed.Load()
		if next <= cur || s.lastUsed.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (s *Session) SSHState() SSHState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ShellClient returns the session's shell transport, dialing it on first
// use. Concurrent callers share a single dial. A failed dial leaves the
// transport unopened so the next caller retries.
func (s *Session) ShellClient(ctx context.Context, dial ShellDialer) (remote.ShellClient, error) {
	s.mu.Lock()
	switch s.state {
	case SSHClosed:
		s.mu.Unlock()
		return nil, ErrClosed
	case SSHReady:
		client := s.shell
		s.mu.Unlock()
		return client, nil
	case SSHUnopened:
		s.state = SSHOpening
	}
	s.mu.Unlock()

	// the dial outlives the caller that triggered it
	dialCtx := context.WithoutCancel(ctx)

	v, err, _ := s.dial.Do("ssh", func() (any, error) {
		s.mu.Lock()
		switch s.state {
		case SSHReady:
			client := s.shell
			s.mu.Unlock()
			return client, nil
		case SSHClosed:
			s.mu.Unlock()
			return nil, ErrClosed
		}
		s.state = SSHOpening
		s.mu.Unlock()

		client, err := dial(dialCtx, s.Remote)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if s.state != SSHClosed {
				s.state = SSHUnopened
			}
			return nil, err
		}
		if s.state == SSHClosed {
			client.Close()
			return nil, ErrClosed
		}
		s.shell = client
		s.state = SSHReady
		go s.watchShell(client)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(remote.ShellClient), nil
}

// watchShell resets the state when a ready transport dies so the next
// terminal opens a fresh one.
func (s *Session) watchShell(client remote.ShellClient) {
	client.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shell == client && s.state == SSHReady {
		s.shell = nil
		s.state = SSHUnopened
		log.Printf("[session] %s: shell transport to %s lost", s.ID, s.Remote.Addr())
	}
}

// AttachShell records a live shell stream so that closing the session
// closes it too.
func (s *Session) AttachShell(id uuid.UUID, shell io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SSHClosed {
		return ErrClosed
	}
	s.shells[id] = shell
	return nil
}

func (s *Session) DetachShell(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shells, id)
}

func (s *Session) ShellCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shells)
}

// Close releases the SFTP transport, the shell transport and every attached
// shell stream in that order. Errors are joined; repeated calls return the
// first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = SSHClosed
		closers := []io.Closer{s.files}
		if s.shell != nil {
			closers = append(closers, s.shell)
		}
		for _, sh := range s.shells {
			closers = append(closers, sh)
		}
		s.shell = nil
		s.shells = make(map[uuid.UUID]io.Closer)
		s.mu.Unlock()

		s.closeErr = remote.CloseAll(closers...)
	})
	return s.closeErr
}

func (s *Session) Info() models.SessionInfo {
	return models.SessionInfo{
		ID:         s.ID,
		Host:       s.Remote.Host,
		Port:       s.Remote.PortOrDefault(),
		Username:   s.Remote.Username,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsed(),
		Terminals:  s.ShellCount(),
	}
}
