// Package remote opens SFTP and SSH transports to remote hosts on behalf of
// browser sessions.
//
// A Broker produces two kinds of transports: a FileClient backed by the SFTP
// subsystem, opened eagerly at login, and a ShellClient used for interactive
// terminals and one-shot commands, opened lazily. Each transport owns its own
// SSH connection.
package remote

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const keepAliveRequest = "keepalive@openssh.com"

type Options struct {
	// ReadyTimeout bounds TCP dial, SSH handshake and SFTP init together.
	ReadyTimeout time.Duration
	// KeepAlive is the interval between keepalive requests. Zero disables them.
	KeepAlive time.Duration
	// KnownHosts is a known_hosts file used to verify host keys. When empty
	// every host key is accepted.
	KnownHosts string
	// HostKeyCallback overrides KnownHosts when set.
	HostKeyCallback ssh.HostKeyCallback
}

type Broker struct {
	opts     Options
	hostKeys ssh.HostKeyCallback
}

func NewBroker(opts Options) (*Broker, error) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 15 * time.Second
	}

	hostKeys := opts.HostKeyCallback
	switch {
	case hostKeys != nil:
	case opts.KnownHosts != "":
		cb, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", opts.KnownHosts, err)
		}
		hostKeys = cb
	default:
		log.Println("[broker] WARN: ssh.known_hosts is not set, remote host keys will not be verified")
		hostKeys = ssh.InsecureIgnoreHostKey()
	}

	return &Broker{opts: opts, hostKeys: hostKeys}, nil
}

// Connect opens an SSH connection and starts the SFTP subsystem on it.
func (b *Broker) Connect(ctx context.Context, creds Credentials) (FileClient, error) {
	var files *sftp.Client
	client, err := b.dial(ctx, creds, func(c *ssh.Client) error {
		var err error
		files, err = sftp.NewClient(c)
		if err != nil {
			return fmt.Errorf("start sftp subsystem: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sftpFiles{client: files, conn: client}, nil
}

// DialShell opens an SSH connection used for shells and command execution.
func (b *Broker) DialShell(ctx context.Context, creds Credentials) (ShellClient, error) {
	client, err := b.dial(ctx, creds, nil)
	if err != nil {
		return nil, err
	}
	return &sshShells{client: client}, nil
}

// dial runs every establishment step under a single deadline. On failure
// whatever was established so far is closed before returning.
func (b *Broker) dial(ctx context.Context, creds Credentials, init func(*ssh.Client) error) (*ssh.Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	auth, err := authMethods(creds)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.ReadyTimeout)
	defer cancel()

	addr := creds.Addr()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	config := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            auth,
		HostKeyCallback: b.hostKeys,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		stop()
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, contextError(ctx, err))
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	if init != nil {
		if err := init(client); err != nil {
			stop()
			client.Close()
			return nil, contextError(ctx, err)
		}
	}

	if !stop() {
		// the context fired after init finished and the socket is gone
		client.Close()
		return nil, fmt.Errorf("connect %s: %w", addr, ctx.Err())
	}
	conn.SetDeadline(time.Time{})

	go b.keepAlive(client)
	return client, nil
}

func (b *Broker) keepAlive(client *ssh.Client) {
	if b.opts.KeepAlive <= 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		client.Wait()
		close(done)
	}()

	ticker := time.NewTicker(b.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest(keepAliveRequest, true, nil); err != nil {
				log.Printf("[broker] keepalive to %s failed: %v", client.RemoteAddr(), err)
				client.Close()
				return
			}
		}
	}
}

// authMethods offers the private key first, then the password both as plain
// password auth and as the answer to keyboard-interactive prompts.
func authMethods(creds Credentials) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if creds.PrivateKey != "" {
		var signer ssh.Signer
		var err error
		if creds.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(creds.PrivateKey), []byte(creds.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(creds.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if creds.Password != "" {
		password := creds.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	return methods, nil
}

func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
