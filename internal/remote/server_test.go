package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "alice"
	testPassword = "s3cret"
)

type windowSize struct {
	Rows, Cols int
}

// testServer is an in-process SSH server that serves SFTP against the local
// filesystem, answers a few canned exec commands and echoes shell input.
type testServer struct {
	addr       string
	hostKey    ssh.PublicKey
	clientKey  ssh.Signer
	clientPriv ed25519.PrivateKey

	resizes chan windowSize

	mu    sync.Mutex
	conns []net.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	_, clientPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	clientSigner, err := ssh.NewSignerFromKey(clientPriv)
	require.NoError(t, err)

	srv := &testServer{
		hostKey:    hostSigner.PublicKey(),
		clientKey:  clientSigner,
		clientPriv: clientPriv,
		resizes:    make(chan windowSize, 16),
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(clientSigner.PublicKey()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.addr = listener.Addr().String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			srv.mu.Lock()
			srv.conns = append(srv.conns, conn)
			srv.mu.Unlock()
			go srv.handleConn(conn, config)
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		srv.dropConnections()
		<-done
	})
	return srv
}

func (s *testServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *testServer) creds() Credentials {
	host, portStr, _ := net.SplitHostPort(s.addr)
	port, _ := strconv.Atoi(portStr)
	return Credentials{Host: host, Port: port, Username: testUser, Password: testPassword}
}

func (s *testServer) handleConn(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	go func() {
		for req := range reqs {
			if req.WantReply {
				req.Reply(req.Type == keepAliveRequest, nil)
			}
		}
	}()

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *testServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		switch req.Type {
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			server, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			server.Serve()
			server.Close()
			return

		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			s.runCommand(ch, payload.Command)
			return

		case "pty-req":
			req.Reply(true, nil)

		case "shell":
			req.Reply(true, nil)
			go s.runShell(ch)

		case "window-change":
			var payload struct {
				Cols, Rows, Width, Height uint32
			}
			if err := ssh.Unmarshal(req.Payload, &payload); err == nil {
				s.resizes <- windowSize{Rows: int(payload.Rows), Cols: int(payload.Cols)}
			}

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// runShell echoes input until the client closes stdin. The line "exit N"
// logs out with status N.
func (s *testServer) runShell(ch ssh.Channel) {
	defer ch.Close()
	buf := make([]byte, 1024)
	for {
		n, err := ch.Read(buf)
		if n > 0 {
			line := strings.TrimSpace(string(buf[:n]))
			if code, ok := strings.CutPrefix(line, "exit "); ok {
				status, _ := strconv.Atoi(code)
				io.WriteString(ch, "logout\n")
				sendExitStatus(ch, uint32(status))
				return
			}
			if _, err := ch.Write(buf[:n]); err != nil {
				return
			}
		}
		if err != nil {
			sendExitStatus(ch, 0)
			return
		}
	}
}

func (s *testServer) runCommand(ch ssh.Channel, command string) {
	switch command {
	case "echo hello":
		io.WriteString(ch, "hello\n")
		sendExitStatus(ch, 0)
	case "fail":
		io.WriteString(ch.Stderr(), "boom\n")
		sendExitStatus(ch, 3)
	case "vanish":
		// close without an exit status
	default:
		io.WriteString(ch.Stderr(), "command not found\n")
		sendExitStatus(ch, 127)
	}
}

func sendExitStatus(ch ssh.Channel, code uint32) {
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{code}))
}
