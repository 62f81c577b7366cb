package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialNumberArithmetic32(t *testing.T) {
	assert.True(t, sna32LT(10, 20))
	assert.False(t, sna32LT(20, 10))
	assert.False(t, sna32LT(10, 10))

	assert.True(t, sna32GT(20, 10))
	assert.True(t, sna32GTE(10, 10))
	assert.True(t, sna32LTE(10, 10))

	// Wraparound: a TSN just below 2^32 precedes a small TSN after wrap.
	const max = ^uint32(0)
	assert.True(t, sna32LT(max, 0))
	assert.True(t, sna32GT(0, max))
	assert.False(t, sna32LT(0, max))
}

func TestSerialNumberArithmetic16(t *testing.T) {
	assert.True(t, sna16LT(10, 20))
	assert.True(t, sna16LTE(10, 10))

	const max = ^uint16(0)
	assert.True(t, sna16LT(max, 0))
}

func TestGetPadding(t *testing.T) {
	assert.Equal(t, 0, getPadding(4))
	assert.Equal(t, 3, getPadding(1))
	assert.Equal(t, 2, getPadding(2))
	assert.Equal(t, 1, getPadding(3))
}
