package sctp

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssociation(t *testing.T) *Association {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })
	return newAssociation(Config{NetConn: client, LoggerFactory: logging.NewDefaultLoggerFactory()})
}

func TestStreamSetUnordered(t *testing.T) {
	a := newTestAssociation(t)
	a.maxPayloadSizeV = 1400
	s := newStream(0, a)

	chunks := s.packetize([]byte{1, 2, 3}, ppidBinary)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].unordered)

	s.SetUnordered(true)
	chunks = s.packetize([]byte{1, 2, 3}, ppidBinary)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].unordered)
}

func TestStreamPacketizeFragmentsOverMTU(t *testing.T) {
	a := newTestAssociation(t)
	a.maxPayloadSizeV = 4
	s := newStream(0, a)

	chunks := s.packetize(make([]byte, 10), ppidBinary)
	require.Len(t, chunks, 3)
	assert.True(t, chunks[0].beginningFragment)
	assert.False(t, chunks[0].endingFragment)
	assert.False(t, chunks[1].beginningFragment)
	assert.False(t, chunks[1].endingFragment)
	assert.True(t, chunks[2].endingFragment)
}

func TestStreamPacketizeZeroLengthMessage(t *testing.T) {
	a := newTestAssociation(t)
	a.maxPayloadSizeV = 1400
	s := newStream(0, a)

	chunks := s.packetize(nil, ppidStringEmpty)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].beginningFragment)
	assert.True(t, chunks[0].endingFragment)
	assert.Empty(t, chunks[0].userData)
}

func TestStreamShouldAbandonReliable(t *testing.T) {
	a := newTestAssociation(t)
	s := newStream(0, a)
	s.SetReliabilityParams(ReliabilityTypeReliable, 0)

	pd := &chunkPayloadData{nSent: 100, since: time.Now().Add(-time.Hour)}
	assert.False(t, s.shouldAbandon(pd))
}

func TestStreamShouldAbandonRexmit(t *testing.T) {
	a := newTestAssociation(t)
	s := newStream(0, a)
	s.SetReliabilityParams(ReliabilityTypeRexmit, 2)

	assert.False(t, s.shouldAbandon(&chunkPayloadData{nSent: 1}))
	assert.True(t, s.shouldAbandon(&chunkPayloadData{nSent: 2}))
	assert.True(t, s.shouldAbandon(&chunkPayloadData{nSent: 3}))
}

func TestStreamShouldAbandonTimed(t *testing.T) {
	a := newTestAssociation(t)
	s := newStream(0, a)
	s.SetReliabilityParams(ReliabilityTypeTimed, 50)

	assert.False(t, s.shouldAbandon(&chunkPayloadData{since: time.Now()}))
	assert.True(t, s.shouldAbandon(&chunkPayloadData{since: time.Now().Add(-time.Second)}))
}

func TestStreamShouldAbandonExemptsDCEP(t *testing.T) {
	a := newTestAssociation(t)
	s := newStream(0, a)
	s.SetReliabilityParams(ReliabilityTypeRexmit, 1)

	pd := &chunkPayloadData{nSent: 5, payloadType: ppidDCEP}
	assert.False(t, s.shouldAbandon(pd))
}

func TestStreamReadAfterResetLockedReturnsEOF(t *testing.T) {
	a := newTestAssociation(t)
	s := newStream(3, a)

	a.lock.Lock()
	s.resetLocked()
	a.lock.Unlock()

	_, _, err := s.ReadSCTP(make([]byte, 16))
	assert.ErrorIs(t, err, errStreamClosed)
}
