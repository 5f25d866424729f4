package auth

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// TokenLength is the number of nanoid symbols in a session token. The
// standard alphabet has 64 symbols, so a token carries 240 random bits.
const TokenLength = 40

var generateToken func() string

func init() {
	gen, err := nanoid.Standard(TokenLength)
	if err != nil {
		panic(fmt.Sprintf("auth: initialize nanoid generator: %v", err))
	}
	generateToken = gen
}

// NewSessionToken returns a fresh opaque bearer token for a session.
func NewSessionToken() string {
	return generateToken()
}
