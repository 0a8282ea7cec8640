package format

import "encoding/binary"

// HashTableEntryBytes is the fixed size of one open-addressed hash-table
// slot: key (8 bytes, zero-extended for 32-bit TokenHash keys), postings
// offset (u32), rule count (u32). Zero key marks an empty slot (spec.md
// §3 "open-addressed, power-of-two capacity, linear probing").
const HashTableEntryBytes = 16

// BuildHashTable lays out a power-of-two-capacity open-addressed table
// over entries, whose capacity is the next power of two >= 2*len(entries)
// (spec.md §4.2 stage 6). Linear probing resolves collisions. Returns the
// serialized table bytes.
func BuildHashTable(keys []uint64, postingsOffset, ruleCount []uint32) []byte {
	n := len(keys)
	cap := nextPow2(2 * n)
	if cap == 0 {
		cap = 1
	}
	slots := make([]byte, cap*HashTableEntryBytes)
	occupied := make([]bool, cap)

	for i, k := range keys {
		idx := int(k % uint64(cap))
		for occupied[idx] {
			idx = (idx + 1) % cap
		}
		occupied[idx] = true
		off := idx * HashTableEntryBytes
		binary.LittleEndian.PutUint64(slots[off:off+8], k)
		binary.LittleEndian.PutUint32(slots[off+8:off+12], postingsOffset[i])
		binary.LittleEndian.PutUint32(slots[off+12:off+16], ruleCount[i])
	}
	return slots
}

// LookupHashTable probes table (as built by BuildHashTable) for key,
// returning its (postingsOffset, ruleCount, found).
func LookupHashTable(table []byte, key uint64) (uint32, uint32, bool) {
	cap := len(table) / HashTableEntryBytes
	if cap == 0 {
		return 0, 0, false
	}
	idx := int(key % uint64(cap))
	start := idx
	for {
		off := idx * HashTableEntryBytes
		slotKey := binary.LittleEndian.Uint64(table[off : off+8])
		if slotKey == 0 {
			return 0, 0, false
		}
		if slotKey == key {
			return binary.LittleEndian.Uint32(table[off+8 : off+12]), binary.LittleEndian.Uint32(table[off+12 : off+16]), true
		}
		idx = (idx + 1) % cap
		if idx == start {
			return 0, 0, false
		}
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
