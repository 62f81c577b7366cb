package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReassemblyQueueOrderedPush(t *testing.T) {
	r := newReassemblyQueue()

	r.push(&chunkPayloadData{beginningFragment: true, tsn: 1, streamSequenceNumber: 0, userData: []byte{0}})
	r.push(&chunkPayloadData{tsn: 2, streamSequenceNumber: 0, userData: []byte{1}})
	r.push(&chunkPayloadData{tsn: 3, streamSequenceNumber: 0, userData: []byte{2}})
	r.push(&chunkPayloadData{endingFragment: true, tsn: 4, streamSequenceNumber: 0, userData: []byte{3}})

	b, _, ok := r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3}, b)
}

func TestReassemblyQueueUnorderedInterleavedWithOrdered(t *testing.T) {
	r := newReassemblyQueue()

	r.push(&chunkPayloadData{beginningFragment: true, tsn: 1, streamSequenceNumber: 1, userData: []byte{0}})
	r.push(&chunkPayloadData{tsn: 2, streamSequenceNumber: 1, userData: []byte{1}})

	r.push(&chunkPayloadData{unordered: true, beginningFragment: true, tsn: 10, streamSequenceNumber: 0, userData: []byte{9}})
	r.push(&chunkPayloadData{unordered: true, endingFragment: true, tsn: 11, streamSequenceNumber: 0, userData: []byte{8}})

	r.push(&chunkPayloadData{tsn: 3, streamSequenceNumber: 1, userData: []byte{2}})
	r.push(&chunkPayloadData{endingFragment: true, tsn: 4, streamSequenceNumber: 1, userData: []byte{3}})

	b, _, ok := r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{9, 8}, b, "unordered message delivered without waiting on ordered sequence")

	b, _, ok = r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3}, b)
}

func TestReassemblyQueueWaitsForInSequence(t *testing.T) {
	r := newReassemblyQueue()

	r.push(&chunkPayloadData{beginningFragment: true, endingFragment: true, tsn: 4, streamSequenceNumber: 0, userData: []byte{0}})
	r.push(&chunkPayloadData{beginningFragment: true, endingFragment: true, tsn: 6, streamSequenceNumber: 2, userData: []byte{2}})

	b, _, ok := r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{0}, b)

	_, _, ok = r.pop()
	assert.False(t, ok, "sequence 2 must not be delivered before sequence 1 arrives")

	r.push(&chunkPayloadData{beginningFragment: true, endingFragment: true, tsn: 5, streamSequenceNumber: 1, userData: []byte{1}})

	b, _, ok = r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, b)

	b, _, ok = r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{2}, b)
}

func TestReassemblyQueueForwardTSNForOrdered(t *testing.T) {
	r := newReassemblyQueue()
	r.push(&chunkPayloadData{beginningFragment: true, endingFragment: true, tsn: 1, streamSequenceNumber: 0, userData: []byte{0}})
	r.push(&chunkPayloadData{beginningFragment: true, endingFragment: true, tsn: 2, streamSequenceNumber: 1, userData: []byte{1}})

	r.forwardTSNForOrdered(0) // abandon sequence 0 only

	b, _, ok := r.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, b)
}
