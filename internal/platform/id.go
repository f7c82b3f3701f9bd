package platform

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const tokenBytes = 32

func NewID() string {
	return uuid.New().String()
}

// NewToken returns a cryptographically unguessable opaque token (256-bit,
// hex encoded). Used for invitation acceptance links, where the token is the
// only way to discover the invitation.
func NewToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return hex.EncodeToString(b)
}
