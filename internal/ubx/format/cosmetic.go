package format

import "encoding/binary"

// CosmeticRecordBytes is the fixed size of one row in COSMETIC_RULES or
// SCRIPTLET_RULES: hostHash(8) kind(1) selectorOffset(4) selectorLength(4)
// reserved(3) = 20 bytes. The compiler (internal/ubx/compiler/
// cosmetic_serialize.go) is the sole writer; this is the reader side.
const CosmeticRecordBytes = 20

// Cosmetic record kinds, shared between the compiler's writer and the
// matcher's reader.
const (
	CosmeticKindHide uint8 = iota
	CosmeticKindException
	CosmeticKindGenerichideToggle
	CosmeticKindElemhideToggle
	CosmeticKindScriptlet
	CosmeticKindProcedural
)

// CosmeticRecord is the decoded view of one COSMETIC_RULES/SCRIPTLET_RULES
// row.
type CosmeticRecord struct {
	HostHash  uint64
	Kind      uint8
	TextOffset uint32
	TextLength uint32
}

// CosmeticRecordCount returns how many fixed-size rows are packed into section.
func CosmeticRecordCount(section []byte) int {
	return len(section) / CosmeticRecordBytes
}

// DecodeCosmeticRecord reads row i out of section.
func DecodeCosmeticRecord(section []byte, i int) CosmeticRecord {
	off := i * CosmeticRecordBytes
	row := section[off : off+CosmeticRecordBytes]
	return CosmeticRecord{
		HostHash:   binary.LittleEndian.Uint64(row[0:8]),
		Kind:       row[8],
		TextOffset: binary.LittleEndian.Uint32(row[9:13]),
		TextLength: binary.LittleEndian.Uint32(row[13:17]),
	}
}
