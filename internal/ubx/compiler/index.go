package compiler

import (
	"sort"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// indexes collects the compiled hash-table inputs (keys + posting lists)
// plus the fallback bucket, ready for serialize.go to hand to
// format.BuildHashTable / format.EncodePostings.
type indexes struct {
	domainAllow map[uint64][]uint32
	domainBlock map[uint64][]uint32
	token       map[uint64][]uint32
	fallback    []uint32
}

// buildIndexes implements spec.md §4.2 stage 5/6: place hostname-only
// rules into the domain sets, tokenized rules into the token dictionary,
// and everything else (no usable token, no hostname anchor) into the
// fallback bucket consulted on every request.
func buildIndexes(rules []*networkRule) *indexes {
	idx := &indexes{
		domainAllow: make(map[uint64][]uint32),
		domainBlock: make(map[uint64][]uint32),
		token:       make(map[uint64][]uint32),
	}

	for _, nr := range rules {
		switch {
		case nr.hostAnchor && nr.hostnameOnly:
			h := uint64(hashing.HashDomain(nr.hostAnchorLabel))
			if nr.action == rule.ActionAllow || nr.action == rule.ActionHeaderMatchAllow {
				idx.domainAllow[h] = append(idx.domainAllow[h], nr.id)
			} else {
				idx.domainBlock[h] = append(idx.domainBlock[h], nr.id)
			}
		case nr.token != "":
			h := uint64(hashing.HashToken(nr.token))
			idx.token[h] = append(idx.token[h], nr.id)
		default:
			idx.fallback = append(idx.fallback, nr.id)
		}
	}

	sort.Slice(idx.fallback, func(i, j int) bool { return idx.fallback[i] < idx.fallback[j] })
	return idx
}

// sortedPostings returns m's keys in ascending order with each posting
// list sorted ascending, matching spec.md §4.2 stage 6 "Sort each posting
// list ascending and delta-encode."
func sortedPostings(m map[uint64][]uint32) ([]uint64, [][]uint32) {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	lists := make([][]uint32, len(keys))
	for i, k := range keys {
		ids := append([]uint32(nil), m[k]...)
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		lists[i] = ids
	}
	return keys, lists
}
