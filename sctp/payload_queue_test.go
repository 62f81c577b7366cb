package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeTestPayload(tsn uint32, size int) *chunkPayloadData {
	return &chunkPayloadData{tsn: tsn, userData: make([]byte, size)}
}

func TestPayloadQueueGetGapAckBlocks(t *testing.T) {
	q := newPayloadQueue()
	for _, tsn := range []uint32{1, 2, 3, 4, 5, 6} {
		q.push(makeTestPayload(tsn, 1), 0)
	}

	blocks := q.getGapAckBlocks(0)
	assert.Len(t, blocks, 1)
	assert.Equal(t, gapAckBlock{start: 1, end: 6}, blocks[0])

	q.push(makeTestPayload(8, 1), 0)
	q.push(makeTestPayload(9, 1), 0)

	blocks = q.getGapAckBlocks(0)
	assert.Len(t, blocks, 2)
	assert.Equal(t, gapAckBlock{start: 1, end: 6}, blocks[0])
	assert.Equal(t, gapAckBlock{start: 8, end: 9}, blocks[1])
}

func TestPayloadQueueDuplicateTracking(t *testing.T) {
	q := newPayloadQueue()
	q.push(makeTestPayload(5, 1), 0)
	q.push(makeTestPayload(5, 1), 0) // duplicate of an already-buffered TSN
	q.push(makeTestPayload(3, 1), 4) // already below cumulativeTSN

	dup := q.popDuplicates()
	assert.Equal(t, []uint32{5, 3}, dup)
	assert.Empty(t, q.popDuplicates())
}

func TestPayloadQueuePopAndByteCount(t *testing.T) {
	q := newPayloadQueue()
	q.push(makeTestPayload(1, 10), 0)
	q.push(makeTestPayload(2, 20), 0)
	assert.Equal(t, 30, q.byteCount())

	pd, ok := q.pop(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), pd.tsn)
	assert.Equal(t, 20, q.byteCount())
	assert.Equal(t, 1, q.size())

	_, ok = q.pop(1)
	assert.False(t, ok)
}

func TestPayloadQueueHighestTSNReceived(t *testing.T) {
	q := newPayloadQueue()
	_, ok := q.highestTSNReceived()
	assert.False(t, ok)

	q.push(makeTestPayload(7, 1), 0)
	q.push(makeTestPayload(3, 1), 0)
	hi, ok := q.highestTSNReceived()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), hi)
}
