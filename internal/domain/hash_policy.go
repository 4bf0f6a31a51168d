package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// HashPolicy computes a stable content hash for a document so re-ingestion
// of unchanged content can be skipped.
type HashPolicy interface {
	Compute(title, content string) string
}

type hashPolicy struct{}

// NewHashPolicy returns the default policy: SHA-256 over the trimmed fields
// with length framing, so ("ab","c") and ("a","bc") never collide.
func NewHashPolicy() HashPolicy {
	return &hashPolicy{}
}

func (p *hashPolicy) Compute(title, content string) string {
	h := sha256.New()
	for _, field := range []string{strings.TrimSpace(title), strings.TrimSpace(content)} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
