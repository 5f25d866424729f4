package remote

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

const DefaultPort = 22

// ErrMissingCredentials is returned before any dial when the host, the
// username or both secrets are absent.
var ErrMissingCredentials = errors.New("host, username and password or privateKey are required")

// Credentials identify one remote account. They are captured once at connect
// time and reused to open the shell transport later.
type Credentials struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey string
	Passphrase string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Host) == "" || c.Username == "" {
		return ErrMissingCredentials
	}
	if c.Password == "" && c.PrivateKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// PortOrDefault returns the configured port, falling back to 22.
func (c Credentials) PortOrDefault() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}

func (c Credentials) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.PortOrDefault()))
}
