package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Settings is the ordered list of opaque strings whose value decides whether
// generation has to run again. Only equality matters; the elements are never
// interpreted.
type Settings []string

// Equal reports whether both lists hold the same elements in the same order
func (s Settings) Equal(other Settings) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}

// With returns a copy of s with items appended
func (s Settings) With(items ...string) Settings {
	out := make(Settings, 0, len(s)+len(items))
	out = append(out, s...)
	return append(out, items...)
}

// Hash returns a SHA256 fingerprint of the settings. Each element is length
// prefixed so ["ab", "c"] and ["a", "bc"] differ.
func (s Settings) Hash() string {
	h := sha256.New()

	var size [8]byte
	for _, item := range s {
		binary.BigEndian.PutUint64(size[:], uint64(len(item)))
		h.Write(size[:])
		h.Write([]byte(item))
	}

	return hex.EncodeToString(h.Sum(nil))
}
