package signaling

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const identityBytes = 8

// NewIdentity returns a fresh opaque client identity. 64 random bits keeps
// the token short enough for log lines while making reuse of a live identity
// practically impossible.
func NewIdentity() string {
	bytes := make([]byte, identityBytes)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(bytes)
}
