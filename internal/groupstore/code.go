package groupstore

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CodeLength is the length of generated join codes.
const CodeLength = 8

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode returns a random join code of CodeLength characters from A-Z and 0-9.
func NewCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for range CodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

// NormalizeCode trims and upper-cases a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
