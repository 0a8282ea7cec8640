package compiler

// stringInterner deduplicates strings into one growing byte buffer,
// handing back (offset, length) pairs (spec.md §3 "String pool... strings
// are referenced by (offset, length)... Intern all strings into the pool
// once with interning (deduplication)" — §4.2 stage 6).
type stringInterner struct {
	buf     []byte
	offsets map[string]uint32
}

func newStringInterner() *stringInterner {
	return &stringInterner{offsets: make(map[string]uint32)}
}

// Intern returns s's (offset, length) in the pool, appending s if it has
// not been seen before.
func (si *stringInterner) Intern(s string) (offset uint32, length uint32) {
	if off, ok := si.offsets[s]; ok {
		return off, uint32(len(s))
	}
	off := uint32(len(si.buf))
	si.buf = append(si.buf, s...)
	si.offsets[s] = off
	return off, uint32(len(s))
}

func (si *stringInterner) Bytes() []byte { return si.buf }
