package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/psl"
	"github.com/edgecomet/ubx/internal/ubx/urlparse"
)

// domainSetsView splits one decoded DOMAIN_SETS section into its four
// byte blobs, reversing buildDomainSetsSection's 16-byte length header.
type domainSetsView struct {
	allowTable, allowPostings []byte
	blockTable, blockPostings []byte
}

func decodeDomainSets(section []byte) domainSetsView {
	if len(section) < 16 {
		return domainSetsView{}
	}
	allowTableLen := le32(section[0:4])
	allowPostingsLen := le32(section[4:8])
	blockTableLen := le32(section[8:12])
	blockPostingsLen := le32(section[12:16])

	off := 16
	v := domainSetsView{}
	v.allowTable, off = section[off:off+allowTableLen], off+allowTableLen
	v.allowPostings, off = section[off:off+allowPostingsLen], off+allowPostingsLen
	v.blockTable, off = section[off:off+blockTableLen], off+blockTableLen
	v.blockPostings = section[off : off+blockPostingsLen]
	return v
}

func le32(b []byte) int {
	return int(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// lookupPostings probes table for key and, if present, decodes its
// posting list out of postings.
func lookupPostings(table, postings []byte, key uint64) []uint32 {
	offset, count, ok := format.LookupHashTable(table, key)
	if !ok || count == 0 {
		return nil
	}
	return format.DecodePostings(postings, int(offset), int(count))
}

// gatherCandidates implements spec.md §4.3.1's candidate-gathering step:
// suffix-walk the request host against both DOMAIN_SETS tables, probe
// TOKEN_DICT for the rarest URL token, and always include the fallback
// bucket of unselective rules.
func gatherCandidates(snap *format.Snapshot, reqCtx urlparse.Context) ([]uint32, error) {
	var ids []uint32

	if snap.Has(format.SectionDomainSets) {
		ds, err := snap.Section(format.SectionDomainSets)
		if err != nil {
			return nil, err
		}
		view := decodeDomainSets(ds)
		for _, h := range psl.SuffixHashes(reqCtx.Host) {
			ids = append(ids, lookupPostings(view.allowTable, view.allowPostings, uint64(h))...)
			ids = append(ids, lookupPostings(view.blockTable, view.blockPostings, uint64(h))...)
		}
	}

	if snap.Has(format.SectionTokenDict) {
		dict, err := snap.Section(format.SectionTokenDict)
		if err != nil {
			return nil, err
		}
		var postings []byte
		if snap.Has(format.SectionTokenPostings) {
			postings, err = snap.Section(format.SectionTokenPostings)
			if err != nil {
				return nil, err
			}
		}
		ids = append(ids, rarestTokenPostings(dict, postings, reqCtx.Raw)...)
	}

	if snap.Has(format.SectionFallbackBucket) {
		fb, err := snap.Section(format.SectionFallbackBucket)
		if err != nil {
			return nil, err
		}
		count := countPostings(fb)
		ids = append(ids, format.DecodePostings(fb, 0, count)...)
	}

	return ids, nil
}

// rarestTokenPostings tokenizes url, looks each candidate token up in
// dict, and returns the postings of whichever present token has the
// smallest rule count — spec.md §4.2 stage 5's "rarest token" choice
// applied symmetrically at match time.
func rarestTokenPostings(dict, postings []byte, url string) []uint32 {
	var best []uint32
	bestCount := -1
	for _, tok := range urlparse.Tokens(url) {
		key := uint64(hashing.HashToken(tok))
		offset, count, ok := format.LookupHashTable(dict, key)
		if !ok {
			continue
		}
		if bestCount < 0 || int(count) < bestCount {
			bestCount = int(count)
			best = format.DecodePostings(postings, int(offset), int(count))
		}
	}
	return best
}

// countPostings decodes however many varints are packed into a
// postings-only blob by scanning it once; the fallback bucket section has
// no separate count field because it is a single flat posting list.
func countPostings(buf []byte) int {
	n := 0
	off := 0
	for off < len(buf) {
		_, next := format.ReadUvarint(buf, off)
		off = next
		n++
	}
	return n
}
