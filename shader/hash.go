package shader

import (
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"hash"
	"strings"
)

// Hash is a SHA-1 content digest.
type Hash [sha1.Size]byte

// String returns the upper-case hex form of the digest.
func (h Hash) String() string { return strings.ToUpper(hex.EncodeToString(h[:])) }

// IsZero reports whether h is the zero digest.
func (h Hash) IsZero() bool { return h == Hash{} }

// HashString digests s.
func HashString(s string) Hash { return Hash(sha1.Sum([]byte(s))) } //nolint:gosec

// Hasher accumulates content into a Hash.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher { return &Hasher{h: sha1.New()} } //nolint:gosec

// WriteString adds s to the digest.
func (h *Hasher) WriteString(s string) { _, _ = h.h.Write([]byte(s)) }

// WriteHash adds another digest.
func (h *Hasher) WriteHash(o Hash) { _, _ = h.h.Write(o[:]) }

// Sum returns the digest of everything written so far.
func (h *Hasher) Sum() Hash {
	var out Hash
	h.h.Sum(out[:0])
	return out
}

// HashKey is the textual cache key of a kernel program. Contributors append
// fragments in a fixed order; equal keys mean equal effective sources.
type HashKey struct {
	b strings.Builder
}

// Append adds a fragment to the key.
func (k *HashKey) Append(s string) { k.b.WriteString(s) }

// AppendHash adds the hex form of a digest to the key.
func (k *HashKey) AppendHash(h Hash) { k.b.WriteString(h.String()) }

// String returns the accumulated key.
func (k *HashKey) String() string { return k.b.String() }
