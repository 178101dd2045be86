package bitalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpotato53/raidfs"
)

func TestGetSetRoundTrip(t *testing.T) {
	bm := make([]byte, 4)
	assert.False(t, Get(bm, 5))
	Set(bm, 5, true)
	assert.True(t, Get(bm, 5))
	Set(bm, 5, false)
	assert.False(t, Get(bm, 5))
}

func TestAllocateFirstFreeAscendingOrder(t *testing.T) {
	bm := make([]byte, 4)
	Set(bm, 0, true)
	Set(bm, 1, true)

	idx, err := AllocateFirstFree(bm, 32)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.True(t, Get(bm, 2))
}

func TestAllocateFirstFreeExhausted(t *testing.T) {
	bm := make([]byte, 1)
	for i := 0; i < 8; i++ {
		Set(bm, i, true)
	}

	_, err := AllocateFirstFree(bm, 8)
	assert.ErrorIs(t, err, raidfs.ErrNoSpace)
}

func TestFreeThenReallocate(t *testing.T) {
	bm := make([]byte, 1)
	idx, err := AllocateFirstFree(bm, 8)
	require.NoError(t, err)

	Free(bm, idx)
	assert.False(t, Get(bm, idx))

	idx2, err := AllocateFirstFree(bm, 8)
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestCountSet(t *testing.T) {
	bm := make([]byte, 2)
	Set(bm, 0, true)
	Set(bm, 3, true)
	Set(bm, 15, true)
	assert.Equal(t, 3, CountSet(bm, 16))
	assert.Equal(t, 2, CountSet(bm, 8))
}
