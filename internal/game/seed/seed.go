// Package seed derives deterministic outcomes from a session seed.
//
// A seed is a lowercase base36 string. Every outcome of a session is a pure
// function of its seed, so any result can be recomputed after the fact.
package seed

import (
	"hash/fnv"
	"math/big"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random seed.
func New() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	s := n.Text(36)
	// Keep it short enough to read aloud while staying unique per session.
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}

// Mod reduces the leading base36 digits of s modulo m (m > 0).
// Parsing stops at the first character that is not a base36 digit.
// A seed without a base36 prefix falls back to its FNV-1a hash.
func Mod(s string, m int64) int64 {
	if m <= 0 {
		panic("seed: non-positive modulus")
	}
	prefix := base36Prefix(s)
	if prefix == "" {
		h := fnv.New64a()
		_, _ = h.Write([]byte(s))
		return int64(h.Sum64() % uint64(m))
	}
	n, _ := new(big.Int).SetString(prefix, 36)
	return new(big.Int).Mod(n, big.NewInt(m)).Int64()
}

// Rand returns a pseudo-random source fully determined by s.
func Rand(s string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func base36Prefix(s string) string {
	s = strings.ToLower(s)
	for i, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z') {
			return s[:i]
		}
	}
	return s
}
