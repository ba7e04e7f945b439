// Package checksum fingerprints file contents and cards.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumJSON returns the digest of v's JSON encoding.
func SumJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: marshal: %w", err)
	}
	return Sum(data), nil
}

// ETag returns the digest of v's JSON encoding as a quoted HTTP entity tag,
// or "" when v cannot be encoded.
func ETag(v any) string {
	sum, err := SumJSON(v)
	if err != nil {
		return ""
	}
	return `"` + sum + `"`
}
