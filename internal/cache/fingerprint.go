package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// Fingerprint derives the cache key for a request from its purpose prefix,
// prompt text and requested length. Each field is length-prefixed before
// hashing so that differently delimited inputs never share a key.
func Fingerprint(prefix, prompt string, maxTokens int) string {
	h := sha256.New()
	var n [8]byte
	for _, field := range []string{prefix, prompt, strconv.Itoa(maxTokens)} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return "ai:" + hex.EncodeToString(h.Sum(nil))
}
