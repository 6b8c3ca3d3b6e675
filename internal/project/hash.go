package project

import "crypto/sha256"

// Digest is a fixed 256-bit content hash.
type Digest [32]byte

// HashBytes digests raw content.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// Combine builds an aggregate hash: H(content || dep1 || dep2 ...). The
// caller is responsible for a deterministic dep order.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether the digest was never set.
func (d Digest) IsZero() bool {
	var z Digest
	return d == z
}
