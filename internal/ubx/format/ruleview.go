package format

import "encoding/binary"

// RuleRecordBytes is the fixed size of one serialized RULES-section row.
// Layout: id(4) action(1) flags(2) typeMask(2) partyMask(1) schemeMask(1)
// patternID(4) domainConstraintOffset(4) optionID(4) priority(2) listID(2)
// reserved(5) = 32 bytes, aligned for cheap slice indexing.
const RuleRecordBytes = 32

// RuleRow is the struct-of-arrays row the loader hands the matcher: a
// plain value decoded from one RULES-section record. It mirrors
// internal/ubx/rule.Rule's fields exactly; format does not import rule to
// avoid a dependency cycle (rule is the lower-level primitive package),
// so callers convert RuleRow into rule.Rule at the call site.
type RuleRow struct {
	ID                     uint32
	Action                 uint8
	Flags                  uint16
	TypeMask               uint16
	PartyMask              uint8
	SchemeMask             uint8
	PatternID              uint32
	DomainConstraintOffset uint32
	OptionID               uint32
	Priority               int16
	ListID                 uint16
}

// EncodeRuleRow appends one RuleRow's wire encoding to buf.
func EncodeRuleRow(buf []byte, r RuleRow) []byte {
	var tmp [RuleRecordBytes]byte
	binary.LittleEndian.PutUint32(tmp[0:4], r.ID)
	tmp[4] = r.Action
	binary.LittleEndian.PutUint16(tmp[5:7], r.Flags)
	binary.LittleEndian.PutUint16(tmp[7:9], r.TypeMask)
	tmp[9] = r.PartyMask
	tmp[10] = r.SchemeMask
	binary.LittleEndian.PutUint32(tmp[11:15], r.PatternID)
	binary.LittleEndian.PutUint32(tmp[15:19], r.DomainConstraintOffset)
	binary.LittleEndian.PutUint32(tmp[19:23], r.OptionID)
	binary.LittleEndian.PutUint16(tmp[23:25], uint16(r.Priority))
	binary.LittleEndian.PutUint16(tmp[25:27], r.ListID)
	return append(buf, tmp[:]...)
}

// DecodeRuleRow decodes the RuleRow at index i within a RULES section.
func DecodeRuleRow(section []byte, i int) RuleRow {
	b := section[i*RuleRecordBytes : (i+1)*RuleRecordBytes]
	return RuleRow{
		ID:                     binary.LittleEndian.Uint32(b[0:4]),
		Action:                 b[4],
		Flags:                  binary.LittleEndian.Uint16(b[5:7]),
		TypeMask:               binary.LittleEndian.Uint16(b[7:9]),
		PartyMask:              b[9],
		SchemeMask:             b[10],
		PatternID:              binary.LittleEndian.Uint32(b[11:15]),
		DomainConstraintOffset: binary.LittleEndian.Uint32(b[15:19]),
		OptionID:               binary.LittleEndian.Uint32(b[19:23]),
		Priority:               int16(binary.LittleEndian.Uint16(b[23:25])),
		ListID:                 binary.LittleEndian.Uint16(b[25:27]),
	}
}

// RuleCount returns how many fixed-size records section holds.
func RuleCount(section []byte) int { return len(section) / RuleRecordBytes }
