package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashTable_BuildAndLookup(t *testing.T) {
	keys := []uint64{11, 22, 33, 44}
	offs := []uint32{0, 10, 20, 30}
	counts := []uint32{1, 2, 3, 4}

	table := BuildHashTable(keys, offs, counts)

	for i, k := range keys {
		off, cnt, ok := LookupHashTable(table, k)
		assert.True(t, ok)
		assert.Equal(t, offs[i], off)
		assert.Equal(t, counts[i], cnt)
	}
}

func TestHashTable_MissingKey(t *testing.T) {
	table := BuildHashTable([]uint64{5}, []uint32{0}, []uint32{1})
	_, _, ok := LookupHashTable(table, 999)
	assert.False(t, ok)
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 1, nextPow2(0))
	assert.Equal(t, 1, nextPow2(1))
	assert.Equal(t, 4, nextPow2(3))
	assert.Equal(t, 8, nextPow2(8))
	assert.Equal(t, 16, nextPow2(9))
}
