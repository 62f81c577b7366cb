package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEstablished puts a bare association (constructed without Client/Server,
// so no handshake ever ran) straight into Established with the TCB fields
// the send/receive-path unit tests below need.
func setEstablished(a *Association) {
	a.state = Established
	a.peerVerificationTag = 0xabad1dea
	a.myNextTSN = 1
	a.peerLastTSN = 0
	a.cumulativeTSNAckPoint = 0
	a.minTSN2MeasureRTT = 1
}

func TestZeroWindowProbeForcesExactlyOneChunk(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.peerRwnd = 0
	a.cwnd = 1 << 20

	a.pendingQueue.push(&chunkPayloadData{streamIdentifier: 0, userData: []byte{1, 2, 3}})
	a.pendingQueue.push(&chunkPayloadData{streamIdentifier: 0, userData: []byte{4, 5, 6}})

	packets := a.gatherNewDataAndReconfigPacketsLocked()
	require.Len(t, packets, 1, "exactly one packet must go out as a zero-window probe")
	assert.Equal(t, 1, a.inflightQueue.size())
	assert.Equal(t, 1, a.pendingQueue.size(), "the second chunk stays queued behind the probe")
}

func TestGatherNewDataRespectsCwnd(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.peerRwnd = 1 << 20
	a.cwnd = 10 // smaller than the chunk

	a.pendingQueue.push(&chunkPayloadData{streamIdentifier: 0, userData: make([]byte, 100)})

	packets := a.gatherNewDataAndReconfigPacketsLocked()
	assert.Nil(t, packets, "a chunk larger than cwnd must not be sent")
	assert.Equal(t, 1, a.pendingQueue.size())
}

func TestOnT3RTXTimeoutSlowStartRestart(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.mtu = 1200
	a.cwnd = 20000
	a.ssthresh = 0x7fffffff

	pd := &chunkPayloadData{tsn: 1, streamIdentifier: 0, userData: []byte{1}}
	a.inflightQueue.chunkMap[1] = pd
	a.inflightQueue.sorted = []uint32{1}
	a.streams[0] = newStream(0, a)

	a.onT3RTXTimeoutLocked()

	assert.Equal(t, a.mtu, a.cwnd, "T3-rtx must restart slow start at one MTU")
	assert.Equal(t, uint32(10000), a.ssthresh) // max(20000/2, 4*1200) = 10000
	assert.True(t, pd.retransmit)
}

func TestOnT3RTXTimeoutAbandonsRexmitStream(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.useForwardTSN = true

	s := newStream(0, a)
	s.SetReliabilityParams(ReliabilityTypeRexmit, 1)
	a.streams[0] = s

	pd := &chunkPayloadData{tsn: 1, streamIdentifier: 0, userData: []byte{1}, nSent: 1}
	a.inflightQueue.chunkMap[1] = pd
	a.inflightQueue.sorted = []uint32{1}

	a.onT3RTXTimeoutLocked()

	assert.True(t, pd.abandoned, "Rexmit(1) must abandon a chunk already sent once")
	assert.False(t, pd.retransmit)
}

func TestProcessSelectiveAckMarksAckedAndSamplesRTT(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.myNextTSN = 4

	for tsn := uint32(1); tsn <= 3; tsn++ {
		a.inflightQueue.chunkMap[tsn] = &chunkPayloadData{tsn: tsn, streamIdentifier: 0, userData: []byte{byte(tsn)}, nSent: 1, since: timeNow()}
		a.inflightQueue.sorted = append(a.inflightQueue.sorted, tsn)
	}
	a.streams[0] = newStream(0, a)

	sack := &chunkSelectiveAck{cumulativeTSNAck: 3}
	bytesPerStream, total, htna, htnaSet := a.processSelectiveAckLocked(sack)

	assert.Equal(t, 3, total)
	assert.Equal(t, 3, bytesPerStream[0])
	assert.True(t, htnaSet)
	assert.Equal(t, uint32(3), htna)
	assert.Equal(t, 0, a.inflightQueue.size(), "every acked TSN must be removed from inflight")
}

func TestProcessSelectiveAckHTNAIncrementsMissIndicator(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.myNextTSN = 4

	pd1 := &chunkPayloadData{tsn: 1, streamIdentifier: 0, userData: []byte{1}, nSent: 1, since: timeNow()}
	pd2 := &chunkPayloadData{tsn: 2, streamIdentifier: 0, userData: []byte{2}, nSent: 1, since: timeNow()}
	a.inflightQueue.chunkMap[1] = pd1
	a.inflightQueue.chunkMap[2] = pd2
	a.inflightQueue.sorted = []uint32{1, 2}
	a.streams[0] = newStream(0, a)

	// TSN 1 is a gap (lost); TSN 2 arrived and is reported as a single-TSN
	// gap-ack block relative to a cumulative point that hasn't moved.
	sack := &chunkSelectiveAck{cumulativeTSNAck: 0, gapAckBlocks: []gapAckBlock{{start: 2, end: 2}}}
	a.processSelectiveAckLocked(sack)

	assert.Equal(t, uint32(1), pd1.missIndicator, "TSN below HTNA that was skipped must accrue a miss")
	assert.True(t, pd2.acked)
}

func TestFastRetransmitEntersAndExitsRecovery(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.mtu = 1000
	a.cwnd = 8000
	a.myNextTSN = 5

	pd := &chunkPayloadData{tsn: 1, missIndicator: 3}
	a.inflightQueue.chunkMap[1] = pd
	a.inflightQueue.sorted = []uint32{1}

	a.processFastRetransmissionLocked()

	assert.True(t, a.inFastRecovery)
	assert.Equal(t, uint32(4000), a.ssthresh) // max(8000/2, 4*1000)
	assert.Equal(t, a.ssthresh, a.cwnd)
	assert.True(t, a.pending.willRetransmitFast)

	a.cumulativeTSNAckPoint = a.fastRecoverExitPoint
	a.processFastRetransmissionLocked()
	assert.False(t, a.inFastRecovery)
}

func TestUpdateAdvancedPeerTSNAckPointSchedulesForwardTSN(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.useForwardTSN = true
	a.cumulativeTSNAckPoint = 0
	a.advancedPeerTSNAckPoint = 0

	a.inflightQueue.chunkMap[1] = &chunkPayloadData{tsn: 1, abandoned: true}
	a.inflightQueue.chunkMap[2] = &chunkPayloadData{tsn: 2, acked: true}
	a.inflightQueue.chunkMap[3] = &chunkPayloadData{tsn: 3} // not yet acked/abandoned: watermark stops here

	a.updateAdvancedPeerTSNAckPointLocked()

	assert.Equal(t, uint32(2), a.advancedPeerTSNAckPoint)
	assert.True(t, a.pending.willSendForwardTSN)
}

func TestUpdateAdvancedPeerTSNAckPointNoopWithoutForwardTSN(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.useForwardTSN = false
	a.inflightQueue.chunkMap[1] = &chunkPayloadData{tsn: 1, abandoned: true}

	a.updateAdvancedPeerTSNAckPointLocked()

	assert.Equal(t, uint32(0), a.advancedPeerTSNAckPoint)
	assert.False(t, a.pending.willSendForwardTSN)
}

func TestResetStreamQueuesOutgoingRequestAndClosesLocalStream(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.myNextTSN = 10

	s := newStream(7, a)
	a.streams[7] = s

	require.NoError(t, a.ResetStream(7))

	a.lock.Lock()
	_, stillOpen := a.streams[7]
	n := len(a.reconfigs)
	a.lock.Unlock()

	assert.False(t, stillOpen)
	assert.Equal(t, 1, n)

	_, _, err := s.ReadSCTP(make([]byte, 4))
	assert.ErrorIs(t, err, errStreamClosed)
}

func TestResetStreamRejectedBeforeEstablished(t *testing.T) {
	a := newTestAssociation(t)
	a.state = CookieWait
	err := a.ResetStream(1)
	assert.ErrorIs(t, err, errResetStreamBeforeEstablished)
}

func TestHandleReconfigParamLockedDefersUntilTSNCaughtUp(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.peerLastTSN = 5

	s := newStream(2, a)
	a.streams[2] = s

	req := &paramOutgoingResetRequest{
		reconfigRequestSequenceNumber: 1,
		senderLastTSN:                 10, // ahead of what we've received
		streamIdentifiers:             []uint16{2},
	}
	a.handleReconfigParamLocked(req)

	_, stillOpen := a.streams[2]
	assert.True(t, stillOpen, "reset must wait until peerLastTSN reaches senderLastTSN")
	assert.Len(t, a.reconfigRequests, 1)

	a.peerLastTSN = 10
	a.resetStreamsIfAnyLocked()

	_, stillOpen = a.streams[2]
	assert.False(t, stillOpen)
	assert.Empty(t, a.reconfigRequests)
}

func TestCheckShutdownDrainSchedulesShutdown(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.state = ShutdownPending

	a.checkShutdownDrainLocked()
	assert.True(t, a.pending.willSendShutdown)
}

func TestCheckShutdownDrainWaitsForQueues(t *testing.T) {
	a := newTestAssociation(t)
	setEstablished(a)
	a.state = ShutdownPending
	a.pendingQueue.push(&chunkPayloadData{streamIdentifier: 0, userData: []byte{1}})

	a.checkShutdownDrainLocked()
	assert.False(t, a.pending.willSendShutdown)
}
