package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// RandomSecret returns 32 bytes from crypto/rand, base58 encoded.
func RandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base58.Encode(buf), nil
}

// RandomHex returns n random bytes as 2n hex characters.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// LocalPart returns the text before the first '@' of an email address.
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
