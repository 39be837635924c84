package signaling

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// Session codes are six digits, entered either flat or with a separating
// hyphen. The string is used verbatim as the table key, so the two spellings
// are distinct codes.
var sessionCodeRegex = regexp.MustCompile(`^(\d{6}|\d{3}-\d{3})$`)

func ValidateSessionCode(code string) bool {
	return sessionCodeRegex.MatchString(code)
}

// GenerateSessionCode produces a fresh code in NNN-NNN form. Codes are only
// required to be reasonably unique; collisions against an active session are
// surfaced by the session table, not prevented here.
func GenerateSessionCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	v := n.Int64()
	return fmt.Sprintf("%03d-%03d", v/1000, v%1000)
}
