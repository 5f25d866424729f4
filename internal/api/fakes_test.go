package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"remote-finder/internal/remote"
)

// memFS is an in-memory FileClient.
type memFS struct {
	mu     sync.Mutex
	nodes  map[string]*memNode
	done   chan struct{}
	closed bool
	once   sync.Once
	opens  int
}

type memNode struct {
	data  []byte
	mode  os.FileMode
	mtime time.Time
}

type memInfo struct {
	name string
	node memNode
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return int64(len(i.node.data)) }
func (i memInfo) Mode() os.FileMode  { return i.node.mode }
func (i memInfo) ModTime() time.Time { return i.node.mtime }
func (i memInfo) IsDir() bool        { return i.node.mode.IsDir() }
func (i memInfo) Sys() any           { return nil }

func newMemFS() *memFS {
	return &memFS{
		nodes: map[string]*memNode{"/": {mode: os.ModeDir | 0o755, mtime: time.Unix(1700000000, 0)}},
		done:  make(chan struct{}),
	}
}

func (m *memFS) addFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Dir(p))
	m.nodes[p] = &memNode{data: data, mode: 0o644, mtime: time.Unix(1700000000, 0)}
}

func (m *memFS) file(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok || n.mode.IsDir() {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

func (m *memFS) exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[p]
	return ok
}

func (m *memFS) mkdirAllLocked(p string) {
	for dir := p; ; dir = path.Dir(dir) {
		if _, ok := m.nodes[dir]; !ok {
			m.nodes[dir] = &memNode{mode: os.ModeDir | 0o755, mtime: time.Unix(1700000000, 0)}
		}
		if dir == "/" || dir == "." {
			return
		}
	}
}

func (m *memFS) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *memFS) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *memFS) check() error {
	if m.closed {
		return errors.New("sftp: connection lost")
	}
	return nil
}

func (m *memFS) ReadDir(p string) ([]os.FileInfo, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	n, ok := m.nodes[p]
	if !ok || !n.mode.IsDir() {
		return nil, os.ErrNotExist
	}
	var out []os.FileInfo
	for name, child := range m.nodes {
		if name != p && path.Dir(name) == p {
			out = append(out, memInfo{name: path.Base(name), node: *child})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *memFS) Stat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return memInfo{name: path.Base(p), node: *n}, nil
}

func (m *memFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.mkdirAllLocked(p)
	return nil
}

func (m *memFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[oldPath]
	if !ok {
		return os.ErrNotExist
	}
	delete(m.nodes, oldPath)
	m.nodes[newPath] = n
	return nil
}

func (m *memFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return os.ErrNotExist
	}
	if n.mode.IsDir() {
		for name := range m.nodes {
			if name != p && strings.HasPrefix(name, p+"/") {
				return errors.New("directory not empty")
			}
		}
	}
	delete(m.nodes, p)
	return nil
}

func (m *memFS) RemoveAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[p]; !ok {
		return os.ErrNotExist
	}
	for name := range m.nodes {
		if name == p || strings.HasPrefix(name, p+"/") {
			delete(m.nodes, name)
		}
	}
	return nil
}

func (m *memFS) Chmod(p string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return os.ErrNotExist
	}
	n.mode = n.mode&os.ModeType | mode
	return nil
}

func (m *memFS) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()
	data, ok := m.file(p)
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memWriter struct {
	fs   *memFS
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.addFile(w.path, w.buf.Bytes())
	return nil
}

func (m *memFS) Create(p string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if n, ok := m.nodes[path.Dir(p)]; !ok || !n.mode.IsDir() {
		return nil, os.ErrNotExist
	}
	return &memWriter{fs: m, path: p}, nil
}

func (m *memFS) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *memFS) Wait() error {
	<-m.done
	return nil
}

// fakeShells answers Exec from a table and opens echo shells.
type fakeShells struct {
	mu       sync.Mutex
	commands []string
	results  map[string]remote.ExecResult
	shells   []*echoShell
	done     chan struct{}
	once     sync.Once
}

func newFakeShells() *fakeShells {
	return &fakeShells{results: map[string]remote.ExecResult{}, done: make(chan struct{})}
}

func (c *fakeShells) on(command string, result remote.ExecResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[command] = result
}

func (c *fakeShells) ran() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func (c *fakeShells) Exec(_ context.Context, command string) (remote.ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	if result, ok := c.results[command]; ok {
		return result, nil
	}
	code := 127
	return remote.ExecResult{Stderr: "command not found\n", Code: &code}, nil
}

func (c *fakeShells) OpenShell(term string, rows, cols int) (remote.Shell, error) {
	sh := newEchoShell()
	c.mu.Lock()
	c.shells = append(c.shells, sh)
	c.mu.Unlock()
	return sh, nil
}

func (c *fakeShells) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeShells) Wait() error {
	<-c.done
	return nil
}

// echoShell writes every input back as output.
type echoShell struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	resizes [][2]int
	closed  bool
}

func newEchoShell() *echoShell {
	r, w := io.Pipe()
	return &echoShell{r: r, w: w}
}

func (s *echoShell) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *echoShell) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *echoShell) Resize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]int{rows, cols})
	return nil
}

func (s *echoShell) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.w.Close()
	return nil
}

func (s *echoShell) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeBroker struct {
	mu         sync.Mutex
	fs         *memFS
	shells     *fakeShells
	connectErr error
	dialErr    error
	connects   int
	dials      int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{fs: newMemFS(), shells: newFakeShells()}
}

func (b *fakeBroker) Connect(_ context.Context, creds remote.Credentials) (remote.FileClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	return b.fs, nil
}

func (b *fakeBroker) DialShell(_ context.Context, _ remote.Credentials) (remote.ShellClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	return b.shells, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}
