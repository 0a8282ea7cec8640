package psl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func basicTable() *Table {
	return &Table{
		Exact:     NewSet("com", "co.uk", "org"),
		Wildcard:  NewSet("bd"),
		Exception: NewSet("city.kobe.jp"),
	}
}

func TestETLD1_SimpleExact(t *testing.T) {
	tb := basicTable()
	assert.Equal(t, "example.com", tb.ETLD1("www.example.com"))
	assert.Equal(t, "example.com", tb.ETLD1("example.com"))
}

func TestETLD1_MultiLabelSuffix(t *testing.T) {
	tb := basicTable()
	assert.Equal(t, "example.co.uk", tb.ETLD1("a.b.example.co.uk"))
}

func TestETLD1_Wildcard(t *testing.T) {
	tb := basicTable()
	assert.Equal(t, "example.bd", tb.ETLD1("www.example.bd"))
}

func TestETLD1_NoMatchFallsBackToBareTLD(t *testing.T) {
	tb := basicTable()
	assert.Equal(t, "example.net", tb.ETLD1("www.example.net"))
}

func TestETLD1_Empty(t *testing.T) {
	tb := basicTable()
	assert.Equal(t, "", tb.ETLD1(""))
}

func TestSuffixes(t *testing.T) {
	assert.Equal(t, []string{"a.b.c", "b.c", "c"}, Suffixes("a.b.c"))
	assert.Nil(t, Suffixes(""))
}

func TestNormalize_IDNPunycode(t *testing.T) {
	out := Normalize("EXAMPLE.COM")
	assert.Equal(t, "example.com", out)
}

func TestSuffixHashes_MatchesSuffixesLength(t *testing.T) {
	hs := SuffixHashes("a.b.c")
	assert.Len(t, hs, 3)
}
