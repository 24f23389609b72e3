package hashengine

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// MultiHash is a minimal default Engine implementation that feeds every
// Update into several stdlib hash.Hash accumulators at once. The real hash
// engine is an out-of-scope collaborator; no package in this module,
// cmd/cddump included, uses this default.
type MultiHash struct {
	hashers map[string]hash.Hash
}

// NewMultiHash builds a MultiHash computing the given named algorithms.
// Supported names: "md5", "sha1", "sha256". Unknown names are ignored.
func NewMultiHash(algorithms []string) *MultiHash {
	m := &MultiHash{hashers: map[string]hash.Hash{}}
	for _, a := range algorithms {
		switch a {
		case "md5":
			m.hashers[a] = md5.New()
		case "sha1":
			m.hashers[a] = sha1.New()
		case "sha256":
			m.hashers[a] = sha256.New()
		}
	}
	return m
}

func (m *MultiHash) Update(p []byte) {
	for _, h := range m.hashers {
		h.Write(p)
	}
}

func (m *MultiHash) Finalize() []Digest {
	out := make([]Digest, 0, len(m.hashers))
	for name, h := range m.hashers {
		out = append(out, Digest{Algorithm: name, Hex: hex.EncodeToString(h.Sum(nil))})
	}
	return out
}

var _ Engine = (*MultiHash)(nil)
