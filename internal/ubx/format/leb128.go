package format

// AppendUvarint appends x to buf as an unsigned LEB128 varint and returns
// the extended slice. Used for posting-list delta encoding (spec.md §3
// "Domain index"/"Token index").
func AppendUvarint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// ReadUvarint decodes an unsigned LEB128 varint from buf starting at
// offset, returning the value and the offset just past it.
func ReadUvarint(buf []byte, offset int) (uint64, int) {
	var x uint64
	var shift uint
	for {
		b := buf[offset]
		offset++
		x |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return x, offset
}

// EncodePostings delta-encodes a sorted-ascending slice of rule IDs as a
// sequence of unsigned LEB128 varints (spec.md §3: "Posting lists are
// delta-encoded unsigned LEB128 sequences of sorted rule IDs").
func EncodePostings(ruleIDs []uint32) []byte {
	out := make([]byte, 0, len(ruleIDs)*2)
	var prev uint32
	for i, id := range ruleIDs {
		if i == 0 {
			out = AppendUvarint(out, uint64(id))
		} else {
			out = AppendUvarint(out, uint64(id-prev))
		}
		prev = id
	}
	return out
}

// DecodePostings reverses EncodePostings, reading exactly count deltas
// starting at offset.
func DecodePostings(buf []byte, offset int, count int) []uint32 {
	out := make([]uint32, count)
	var prev uint32
	for i := 0; i < count; i++ {
		var delta uint64
		delta, offset = ReadUvarint(buf, offset)
		if i == 0 {
			prev = uint32(delta)
		} else {
			prev += uint32(delta)
		}
		out[i] = prev
	}
	return out
}
