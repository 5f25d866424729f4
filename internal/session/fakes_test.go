package session

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"remote-finder/internal/remote"
)

type fakeFiles struct {
	closed atomic.Int32
	done   chan struct{}
	once   sync.Once
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{done: make(chan struct{})}
}

func (f *fakeFiles) kill() { f.once.Do(func() { close(f.done) }) }

func (f *fakeFiles) ReadDir(string) ([]os.FileInfo, error) { return nil, nil }
func (f *fakeFiles) Stat(string) (os.FileInfo, error)      { return nil, os.ErrNotExist }
func (f *fakeFiles) MkdirAll(string) error                 { return nil }
func (f *fakeFiles) Rename(string, string) error           { return nil }
func (f *fakeFiles) Remove(string) error                   { return nil }
func (f *fakeFiles) RemoveAll(string) error                { return nil }
func (f *fakeFiles) Chmod(string, os.FileMode) error       { return nil }
func (f *fakeFiles) Open(string) (io.ReadCloser, error)    { return nil, os.ErrNotExist }
func (f *fakeFiles) Create(string) (io.WriteCloser, error) { return nil, os.ErrPermission }

func (f *fakeFiles) Close() error {
	f.closed.Add(1)
	f.kill()
	return nil
}

func (f *fakeFiles) Wait() error {
	<-f.done
	return nil
}

type fakeShells struct {
	closed atomic.Int32
	done   chan struct{}
	once   sync.Once
}

func newFakeShells() *fakeShells {
	return &fakeShells{done: make(chan struct{})}
}

func (c *fakeShells) kill() { c.once.Do(func() { close(c.done) }) }

func (c *fakeShells) OpenShell(string, int, int) (remote.Shell, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeShells) Exec(context.Context, string) (remote.ExecResult, error) {
	return remote.ExecResult{}, nil
}

func (c *fakeShells) Close() error {
	c.closed.Add(1)
	c.kill()
	return nil
}

func (c *fakeShells) Wait() error {
	<-c.done
	return nil
}

type fakeCloser struct {
	closed atomic.Int32
}

func (c *fakeCloser) Close() error {
	c.closed.Add(1)
	return nil
}

var testCreds = remote.Credentials{Host: "files.example.com", Username: "alice", Password: "pw"}
