package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostings_RoundTrip(t *testing.T) {
	ids := []uint32{3, 5, 5, 1000, 1001, 50000}
	enc := EncodePostings(ids)
	dec := DecodePostings(enc, 0, len(ids))
	assert.Equal(t, ids, dec)
}

func TestUvarint_RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40} {
		buf := AppendUvarint(nil, v)
		got, n := ReadUvarint(buf, 0)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}
