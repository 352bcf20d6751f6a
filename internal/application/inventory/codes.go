package inventory

import (
	"crypto/rand"
	"strings"
)

// Crockford base32: no I, L, O or U, so codes survive being read aloud.
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const codeLength = 10

// NewRedemptionCode returns a random 50-bit code. 256 is a multiple of 32,
// so reducing each byte mod 32 is unbiased.
func NewRedemptionCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[b%32]
	}
	return string(out), nil
}

// NormalizeCode upper-cases a typed code and maps the ambiguous letters
// Crockford decoding folds (I and L to 1, O to 0), dropping hyphens and spaces.
func NormalizeCode(code string) string {
	r := strings.NewReplacer("-", "", " ", "", "I", "1", "L", "1", "O", "0")
	return r.Replace(strings.ToUpper(strings.TrimSpace(code)))
}
