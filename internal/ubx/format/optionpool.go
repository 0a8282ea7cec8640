package format

import "encoding/binary"

// OptionRowBytes is the fixed size of one row in an "option text pool"
// section: a (strOffset, strLength) pair addressing STRPOOL. The four
// action-dependent option sections (REMOVEPARAM_SPECS, CSP_SPECS,
// HEADER_SPECS, RESPONSEHEADER_RULES) and the per-rule side of
// REDIRECT_RESOURCES all share this row shape; Rule.OptionID is the row
// index (not a byte offset) into whichever of these sections its Action
// addresses.
const OptionRowBytes = 8

// AppendOptionRow appends one (offset, length) row and returns the
// extended slice plus the row's index.
func AppendOptionRow(buf []byte, strOffset, strLength uint32) ([]byte, uint32) {
	idx := uint32(len(buf) / OptionRowBytes)
	row := make([]byte, OptionRowBytes)
	binary.LittleEndian.PutUint32(row[0:4], strOffset)
	binary.LittleEndian.PutUint32(row[4:8], strLength)
	return append(buf, row...), idx
}

// DecodeOptionRow reads the (offset, length) pair at row index i.
func DecodeOptionRow(section []byte, i uint32) (uint32, uint32) {
	off := int(i) * OptionRowBytes
	return binary.LittleEndian.Uint32(section[off : off+4]), binary.LittleEndian.Uint32(section[off+4 : off+8])
}
