package util

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// ShortID returns a 10-character opaque identifier, used for inline
// collections and items where clients round-trip the raw id.
func ShortID() string {
	bytes := make([]byte, 5)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
