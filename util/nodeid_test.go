package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeIDRoundTrip(t *testing.T) {
	hexStr := "0102030405060708090a0b0c0d0e0f1011121314"
	id, err := ParseNodeID(hexStr)
	require.NoError(t, err)
	assert.Equal(t, hexStr, id.String())
}

func TestParseNodeIDRejectsWrongLength(t *testing.T) {
	_, err := ParseNodeID("aabb")
	assert.Error(t, err)
}

func TestDistanceIsSymmetric(t *testing.T) {
	a, _ := RandomNodeID()
	b, _ := RandomNodeID()
	assert.Equal(t, a.Distance(b), b.Distance(a))
}

func TestDistanceZeroForEqualIDs(t *testing.T) {
	a, _ := RandomNodeID()
	var zero NodeID
	assert.Equal(t, zero, a.Distance(a))
}

func TestBitAt(t *testing.T) {
	var id NodeID
	id[0] = 0b10000000
	assert.Equal(t, 1, id.BitAt(0))
	assert.Equal(t, 0, id.BitAt(1))
}

func TestLessOrdersByMagnitude(t *testing.T) {
	var a, b NodeID
	a[19] = 1
	b[19] = 2
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
