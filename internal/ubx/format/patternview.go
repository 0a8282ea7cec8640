package format

import "encoding/binary"

// PatternInstrBytes is the fixed size of one encoded Pattern opcode:
// op(1) litOffset(4, into STRPOOL) litLength(4) anchorHash(8).
const PatternInstrBytes = 17

// EncodedInstr is the wire form of one rule.Instr, with the literal
// already interned into the string pool.
type EncodedInstr struct {
	Op         uint8
	LitOffset  uint32
	LitLength  uint32
	AnchorHash uint64
}

// EncodedPattern is the wire form of one rule.Pattern. PatternID in a
// RuleRow is the byte offset of its EncodedPattern within PATTERN_POOL,
// since patterns are variable-length.
type EncodedPattern struct {
	Anchor         uint8
	CaseSensitive  bool
	AnchorHostHash uint64
	Instrs         []EncodedInstr
	RegexOffset    uint32 // into STRPOOL, only meaningful when Anchor == regex
	RegexLength    uint32
}

// AppendPattern serializes p and appends it to buf, returning the
// extended buffer and the byte offset p now occupies (its PatternID).
func AppendPattern(buf []byte, p EncodedPattern) ([]byte, uint32) {
	offset := uint32(len(buf))

	var head [14]byte
	head[0] = p.Anchor
	if p.CaseSensitive {
		head[1] = 1
	}
	binary.LittleEndian.PutUint64(head[2:10], p.AnchorHostHash)
	binary.LittleEndian.PutUint32(head[10:14], uint32(len(p.Instrs)))
	buf = append(buf, head[:]...)

	if p.Anchor == anchorRegexTag {
		var re [8]byte
		binary.LittleEndian.PutUint32(re[0:4], p.RegexOffset)
		binary.LittleEndian.PutUint32(re[4:8], p.RegexLength)
		buf = append(buf, re[:]...)
	}

	for _, in := range p.Instrs {
		var b [PatternInstrBytes]byte
		b[0] = in.Op
		binary.LittleEndian.PutUint32(b[1:5], in.LitOffset)
		binary.LittleEndian.PutUint32(b[5:9], in.LitLength)
		binary.LittleEndian.PutUint64(b[9:17], in.AnchorHash)
		buf = append(buf, b[:]...)
	}
	return buf, offset
}

// anchorRegexTag mirrors rule.AnchorRegex's numeric value (3); format
// cannot import rule (rule is the decoded-side primitive package), so the
// tag is restated here and must be kept in sync.
const anchorRegexTag uint8 = 3

// DecodePattern reads the EncodedPattern stored at offset within section.
func DecodePattern(section []byte, offset uint32) EncodedPattern {
	head := section[offset : offset+14]
	p := EncodedPattern{
		Anchor:         head[0],
		CaseSensitive:  head[1] == 1,
		AnchorHostHash: binary.LittleEndian.Uint64(head[2:10]),
	}
	instrCount := binary.LittleEndian.Uint32(head[10:14])
	cursor := offset + 14

	if p.Anchor == anchorRegexTag {
		re := section[cursor : cursor+8]
		p.RegexOffset = binary.LittleEndian.Uint32(re[0:4])
		p.RegexLength = binary.LittleEndian.Uint32(re[4:8])
		cursor += 8
	}

	p.Instrs = make([]EncodedInstr, instrCount)
	for i := uint32(0); i < instrCount; i++ {
		b := section[cursor : cursor+PatternInstrBytes]
		p.Instrs[i] = EncodedInstr{
			Op:         b[0],
			LitOffset:  binary.LittleEndian.Uint32(b[1:5]),
			LitLength:  binary.LittleEndian.Uint32(b[5:9]),
			AnchorHash: binary.LittleEndian.Uint64(b[9:17]),
		}
		cursor += PatternInstrBytes
	}
	return p
}
