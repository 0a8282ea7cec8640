package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPattern_RoundTrip(t *testing.T) {
	var buf []byte
	buf, off := AppendPattern(buf, EncodedPattern{
		Anchor:         2,
		CaseSensitive:  true,
		AnchorHostHash: 0xdeadbeef,
		Instrs: []EncodedInstr{
			{Op: 0, LitOffset: 10, LitLength: 4},
			{Op: 6},
		},
	})
	got := DecodePattern(buf, off)
	assert.Equal(t, uint8(2), got.Anchor)
	assert.True(t, got.CaseSensitive)
	assert.Equal(t, uint64(0xdeadbeef), got.AnchorHostHash)
	assert.Len(t, got.Instrs, 2)
	assert.Equal(t, uint32(10), got.Instrs[0].LitOffset)
}

func TestPattern_RegexVariant(t *testing.T) {
	var buf []byte
	buf, off := AppendPattern(buf, EncodedPattern{
		Anchor:      anchorRegexTag,
		RegexOffset: 5,
		RegexLength: 12,
	})
	got := DecodePattern(buf, off)
	assert.Equal(t, uint32(5), got.RegexOffset)
	assert.Equal(t, uint32(12), got.RegexLength)
}

func TestDomainConstraint_RoundTrip(t *testing.T) {
	var buf []byte
	buf, off := AppendDomainConstraint(buf, []uint64{1, 2, 3}, []uint64{9})
	inc, exc := DecodeDomainConstraint(buf, off)
	assert.Equal(t, []uint64{1, 2, 3}, inc)
	assert.Equal(t, []uint64{9}, exc)
}
