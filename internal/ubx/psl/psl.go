// Package psl implements the public-suffix walk used to compute eTLD+1 and
// to drive domain-constraint / DOMAIN_SETS matching. See spec.md §3 "PSL"
// and §4.3.1 "Context derivation". The three Hash64 sets (exact, wildcard,
// exception) are read from the UBX snapshot's PSL_SETS section; this
// package only implements the walk and set logic against those sets, the
// same first-match-wins suffix-walk idiom the blocklist store example
// uses for GetFirstMatch.
package psl

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
)

// HashSet is a read-only Hash64 membership set. The UBX loader backs this
// with an open-addressed hash table view over snapshot bytes; Set below is
// a plain in-memory implementation used by the compiler and by tests.
type HashSet interface {
	Contains(h hashing.Hash64) bool
}

// Set is a simple map-backed HashSet, used by the compiler when building
// the PSL_SETS section and by unit tests exercising the Table in isolation.
type Set map[hashing.Hash64]struct{}

func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[hashing.HashDomain(l)] = struct{}{}
	}
	return s
}

func (s Set) Contains(h hashing.Hash64) bool {
	_, ok := s[h]
	return ok
}

// Table bundles the three PSL sets the snapshot carries: exact rules
// ("com", "co.uk"), wildcard rules ("*.bd" meaning every two-label suffix
// under .bd is its own public suffix), and exceptions ("!city.kobe.jp").
type Table struct {
	Exact     HashSet
	Wildcard  HashSet
	Exception HashSet
}

// Suffixes enumerates a normalized hostname's suffixes from most to least
// specific: the full host, then each parent label boundary, down to (but
// not including) the root. Used both for the suffix-walk over
// DOMAIN_SETS/domain-constraints and internally by ETLD1.
func Suffixes(host string) []string {
	if host == "" {
		return nil
	}
	labels := strings.Split(host, ".")
	out := make([]string, 0, len(labels))
	for i := range labels {
		out = append(out, strings.Join(labels[i:], "."))
	}
	return out
}

// SuffixHashes returns Hash64 of every entry from Suffixes(host), reusing
// the same slice-from-labels walk the matcher needs for domain-constraint
// and DOMAIN_SETS lookups (spec.md §4.3.1 bullet "Suffix-walk the request host").
func SuffixHashes(host string) []hashing.Hash64 {
	sfx := Suffixes(host)
	out := make([]hashing.Hash64, len(sfx))
	for i, s := range sfx {
		out[i] = hashing.HashDomain(s)
	}
	return out
}

// ETLD1 computes the effective top-level-domain-plus-one (the registrable
// domain) of host using t's three PSL sets. An empty result means host has
// no public suffix match (e.g. "localhost", a bare IP, or a malformed host).
func (t *Table) ETLD1(host string) string {
	host = Normalize(host)
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")

	longestPublicSuffixLen := 0 // label count
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		h := hashing.HashDomain(candidate)

		if t.Exception != nil && t.Exception.Contains(h) {
			// An exception rule "!x.y.z" means x.y.z itself is NOT a public
			// suffix; its registrable boundary sits one label up.
			if len(labels)-i > longestPublicSuffixLen {
				longestPublicSuffixLen = len(labels) - i - 1
			}
			continue
		}
		if t.Exact != nil && t.Exact.Contains(h) {
			if len(labels)-i > longestPublicSuffixLen {
				longestPublicSuffixLen = len(labels) - i
			}
			continue
		}
		if t.Wildcard != nil && i+1 <= len(labels) {
			// "*.bd" style rule: every immediate child of a wildcard suffix is
			// itself a public suffix. Check whether labels[i+1:] is a
			// registered wildcard parent.
			if i+1 < len(labels) {
				parent := strings.Join(labels[i+1:], ".")
				if t.Wildcard.Contains(hashing.HashDomain(parent)) {
					if len(labels)-i > longestPublicSuffixLen {
						longestPublicSuffixLen = len(labels) - i
					}
				}
			}
		}
	}

	if longestPublicSuffixLen == 0 {
		// No PSL rule matched at all; fall back to the implicit "*" rule
		// (ICANN's default): the public suffix is the bare TLD.
		longestPublicSuffixLen = 1
	}
	// Registrable domain is one label more than the public suffix, bounded
	// by the full hostname when the host itself IS the public suffix.
	regLen := longestPublicSuffixLen + 1
	if regLen > len(labels) {
		return host
	}
	return strings.Join(labels[len(labels)-regLen:], ".")
}

// Normalize lowercases and punycode-encodes host per spec.md's normalized
// hostname invariant, so that Hash64 lookups against snapshot-encoded
// ASCII labels always succeed for IDN input.
func Normalize(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Unencodable input (invalid IDN) is left as-is; the matcher treats
		// it as simply not matching any PSL rule or rule anchor.
		return host
	}
	return ascii
}
