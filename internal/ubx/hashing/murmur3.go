// Package hashing implements the composite hash functions used throughout
// the UBX snapshot format: Hash64 for domains/hostnames (two independent
// Murmur3 32-bit passes) and TokenHash for URL substrings (a single
// Murmur3 32-bit pass). See spec.md §3 "Hash64" / "TokenHash".
package hashing

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	seedLo uint32 = 0x9e3779b9
	seedHi uint32 = 0x85ebca6b

	c1 uint32 = 0xcc9e2d51
	c2 uint32 = 0x1b873593
)

// Hash64 is a 64-bit composite key: the low 32 bits are Murmur3(seedLo),
// the high 32 bits are Murmur3(seedHi). The value 0 is the reserved
// empty-slot sentinel; see EnsureNonZero.
type Hash64 uint64

// TokenHash is a 32-bit Murmur3 hash of an alphanumeric URL token. Zero is
// reserved for empty slots.
type TokenHash uint32

// HashDomain lowercases s and returns its Hash64. The result never equals 0
// (the reserved empty-slot sentinel) because the low half is OR'd with 1 in
// that case.
func HashDomain(s string) Hash64 {
	lower := toLowerASCIIOrFold(s)
	lo := murmur3_32(lower, seedLo)
	hi := murmur3_32(lower, seedHi)
	if lo == 0 && hi == 0 {
		lo |= 1
	}
	return Hash64(uint64(hi)<<32 | uint64(lo))
}

// HashToken returns the TokenHash of an already-lowercased alphanumeric
// substring of length >= 3. Zero is reserved, so a natural zero result is
// remapped to 1 (an arbitrary, still-deterministic non-zero value);
// in practice this never triggers for real ASCII tokens but is kept as a
// defensive invariant per spec.md §3 ("Zero is reserved for empty slots").
func HashToken(s string) TokenHash {
	h := murmur3_32(s, seedLo)
	if h == 0 {
		h = 1
	}
	return TokenHash(h)
}

// FingerprintURL returns a fast 64-bit fingerprint of a full URL string for
// use as (part of) a decision-cache key. xxhash is used here rather than
// the Hash64 murmur3 composite because the fingerprint is never persisted
// in the UBX snapshot and only needs speed and low collision probability,
// not the snapshot format's exact bit layout.
func FingerprintURL(url string) uint64 {
	return xxhash.Sum64String(url)
}

// IsSentinel reports whether h is the reserved empty-slot value (0,0).
func (h Hash64) IsSentinel() bool {
	return h == 0
}

func toLowerASCIIOrFold(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			return strings.ToLower(s)
		}
	}
	return s
}

// murmur3_32 implements the 32-bit Murmur3 (x86) algorithm over s with the
// given seed, matching the reference algorithm bit-for-bit.
func murmur3_32(s string, seed uint32) uint32 {
	h := seed
	n := len(s)
	nblocks := n / 4

	for i := 0; i < nblocks; i++ {
		k := uint32(s[i*4]) | uint32(s[i*4+1])<<8 | uint32(s[i*4+2])<<16 | uint32(s[i*4+3])<<24
		k *= c1
		k = rotl32(k, 15)
		k *= c2

		h ^= k
		h = rotl32(h, 13)
		h = h*5 + 0xe6546b64
	}

	var k uint32
	tail := s[nblocks*4:]
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = rotl32(k, 15)
		k *= c2
		h ^= k
	}

	h ^= uint32(n)
	h = fmix32(h)
	return h
}

func rotl32(x uint32, r uint8) uint32 {
	return (x << r) | (x >> (32 - r))
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
