package format

import "encoding/binary"

// AppendDomainConstraint serializes one domain-constraint record per
// spec.md §3: "(include-count u16, exclude-count u16, include hashes,
// exclude hashes)", and appends it to buf. Returns the extended buffer
// and the record's byte offset (a Rule's DomainConstraintOffset).
func AppendDomainConstraint(buf []byte, include, exclude []uint64) ([]byte, uint32) {
	offset := uint32(len(buf))
	var head [4]byte
	binary.LittleEndian.PutUint16(head[0:2], uint16(len(include)))
	binary.LittleEndian.PutUint16(head[2:4], uint16(len(exclude)))
	buf = append(buf, head[:]...)
	for _, h := range include {
		buf = binary.LittleEndian.AppendUint64(buf, h)
	}
	for _, h := range exclude {
		buf = binary.LittleEndian.AppendUint64(buf, h)
	}
	return buf, offset
}

// DecodeDomainConstraint reads the record at offset within section.
func DecodeDomainConstraint(section []byte, offset uint32) (include, exclude []uint64) {
	head := section[offset : offset+4]
	includeCount := binary.LittleEndian.Uint16(head[0:2])
	excludeCount := binary.LittleEndian.Uint16(head[2:4])
	cursor := offset + 4

	include = make([]uint64, includeCount)
	for i := range include {
		include[i] = binary.LittleEndian.Uint64(section[cursor : cursor+8])
		cursor += 8
	}
	exclude = make([]uint64, excludeCount)
	for i := range exclude {
		exclude[i] = binary.LittleEndian.Uint64(section[cursor : cursor+8])
		cursor += 8
	}
	return include, exclude
}
