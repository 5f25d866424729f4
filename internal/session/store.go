package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"remote-finder/internal/auth"
	"remote-finder/internal/remote"
)

const maxTokenAttempts = 10

type (
	OpenObserver  func(s *Session)
	CloseObserver func(s *Session, reason CloseReason)
)

// Store maps session tokens to live sessions. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	obsMu   sync.RWMutex
	onOpen  []OpenObserver
	onClose []CloseObserver

	now      func() time.Time
	newToken func() string
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newToken: auth.NewSessionToken,
	}
}

func (st *Store) OnOpen(fn OpenObserver) {
	st.obsMu.Lock()
	defer st.obsMu.Unlock()
	st.onOpen = append(st.onOpen, fn)
}

// OnClose registers fn to run after a session has been removed and its
// transports closed.
func (st *Store) OnClose(fn CloseObserver) {
	st.obsMu.Lock()
	defer st.obsMu.Unlock()
	st.onClose = append(st.onClose, fn)
}

// Create registers a session that takes ownership of files. When the
// transport behind files dies the session is destroyed with ReasonTransport.
func (st *Store) Create(creds remote.Credentials, files remote.FileClient) (*Session, error) {
	if files == nil {
		return nil, errors.New("session requires a file transport")
	}

	st.mu.Lock()
	var sess *Session
	for i := 0; i < maxTokenAttempts; i++ {
		token := st.newToken()
		if _, taken := st.sessions[token]; taken {
			continue
		}
		sess = newSession(token, creds, files, st.now())
		st.sessions[token] = sess
		break
	}
	st.mu.Unlock()

	if sess == nil {
		return nil, fmt.Errorf("failed to generate a unique session token after %d attempts", maxTokenAttempts)
	}

	go func() {
		files.Wait()
		st.Destroy(sess.Token, ReasonTransport)
	}()

	log.Printf("[session] %s opened for %s@%s", sess.ID, creds.Username, creds.Addr())

	st.obsMu.RLock()
	observers := append([]OpenObserver(nil), st.onOpen...)
	st.obsMu.RUnlock()
	for _, fn := range observers {
		fn(sess)
	}

	return sess, nil
}

func (st *Store) Get(token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	st.mu.RLock()
	sess, ok := st.sessions[token]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// Touch resolves token and bumps its last-used time.
func (st *Store) Touch(token string) (*Session, error) {
	sess, err := st.Get(token)
	if err != nil {
		return nil, err
	}
	sess.Touch(st.now())
	return sess, nil
}

// Destroy removes the session and closes its transports. It reports whether
// this call did the removal; destroying an unknown token is a no-op.
func (st *Store) Destroy(token string, reason CloseReason) bool {
	st.mu.Lock()
	sess, ok := st.sessions[token]
	if ok {
		delete(st.sessions, token)
	}
	st.mu.Unlock()

	if !ok {
		return false
	}
	st.finish(sess, reason)
	return true
}

// destroyIfIdle removes the session only when it has not been used since
// cutoff, checked under the store lock.
func (st *Store) destroyIfIdle(token string, cutoff time.Time) bool {
	st.mu.Lock()
	sess, ok := st.sessions[token]
	if ok && sess.LastUsed().Before(cutoff) {
		delete(st.sessions, token)
	} else {
		ok = false
	}
	st.mu.Unlock()

	if !ok {
		return false
	}
	st.finish(sess, ReasonIdle)
	return true
}

func (st *Store) finish(sess *Session, reason CloseReason) {
	if err := sess.Close(); err != nil {
		log.Printf("[session] WARN: %s: error while closing transports: %v", sess.ID, err)
	}
	log.Printf("[session] %s closed (%s)", sess.ID, reason)

	st.obsMu.RLock()
	observers := append([]CloseObserver(nil), st.onClose...)
	st.obsMu.RUnlock()
	for _, fn := range observers {
		fn(sess, reason)
	}
}

// All returns a snapshot of the live sessions.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess)
	}
	return out
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Terminals counts attached shell streams across all sessions.
func (st *Store) Terminals() int {
	n := 0
	for _, sess := range st.All() {
		n += sess.ShellCount()
	}
	return n
}

// CloseAll destroys every session with the given reason.
func (st *Store) CloseAll(reason CloseReason) int {
	n := 0
	for _, sess := range st.All() {
		if st.Destroy(sess.Token, reason) {
			n++
		}
	}
	return n
}
