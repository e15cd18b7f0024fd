package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewLinkCode returns an upper-case hex code of nBytes random bytes.
func NewLinkCode(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 4
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
