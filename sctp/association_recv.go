package sctp

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// handleInboundPacket is the read-loop's sole entry point into the
// association's state machine: one packet in, zero or more chunks
// processed, at most one SACK-urgency decision made (spec.md §4.3
// handle_chunk_start/handle_chunk_end bracket).
func (a *Association) handleInboundPacket(raw []byte) error {
	var p packet
	if err := p.unmarshal(raw); err != nil {
		return errors.Wrap(err, "failed to unmarshal packet")
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.checkPacket(&p); err != nil {
		return err
	}

	a.bytesReceived += uint64(len(raw))
	a.handleChunkStartLocked()

	for _, c := range p.chunks {
		if err := a.handleChunk(c); err != nil {
			a.log.Debugf("[%s] chunk handling error: %v", a.name, err)
		}
	}

	a.handleChunkEndLocked()
	return nil
}

// checkPacket validates the common header against RFC 4960 §8.5's
// verification-tag rules before any chunk is processed.
func (a *Association) checkPacket(p *packet) error {
	if p.sourcePort == 0 {
		return errSCTPPacketSourcePortZero
	}
	if p.destinationPort == 0 {
		return errSCTPPacketDestinationPortZero
	}
	if len(p.chunks) == 0 {
		return errParseSCTPChunkNotEnoughData
	}

	if _, isInit := p.chunks[0].(*chunkInit); isInit {
		if len(p.chunks) != 1 {
			return errInitChunkBundled
		}
		if p.verificationTag != 0 {
			return errInitChunkVerifyTagNonZero
		}
		return nil
	}

	if p.verificationTag != a.myVerificationTag {
		return errPacketVerificationTagMismatch
	}
	return nil
}

// handleChunkStartLocked resets the per-packet ack-urgency flags that
// individual chunk handlers set (spec.md §4.3).
func (a *Association) handleChunkStartLocked() {
	a.delayedAckTriggered = false
	a.immediateAckTriggered = false
}

// handleChunkEndLocked applies this packet's ack-urgency decision, honoring
// an AckMode override before falling back to the normal delayed/immediate
// rule.
func (a *Association) handleChunkEndLocked() {
	switch a.ackMode {
	case AckModeNoDelay:
		if a.delayedAckTriggered {
			a.immediateAckTriggered = true
		}
	case AckModeAlwaysDelay:
		if a.immediateAckTriggered {
			a.immediateAckTriggered = false
			a.delayedAckTriggered = true
		}
	}

	if a.immediateAckTriggered {
		a.ackState = ackStateImmediate
		a.ackTimer.stop()
		a.wakeWriteLoop()
		return
	}
	if a.delayedAckTriggered && a.ackState != ackStateImmediate {
		a.ackState = ackStateDelay
		a.ackTimer.start()
	}
}

func (a *Association) handleChunk(c chunk) error {
	if _, err := c.check(); err != nil {
		return err
	}

	switch ch := c.(type) {
	case *chunkInit:
		return a.handleInit(ch)
	case *chunkInitAck:
		return a.handleInitAck(ch)
	case *chunkCookieEcho:
		return a.handleCookieEcho(ch)
	case *chunkCookieAck:
		return a.handleCookieAck()
	case *chunkPayloadData:
		return a.handleDataChunk(ch)
	case *chunkSelectiveAck:
		return a.handleSack(ch)
	case *chunkForwardTSN:
		return a.handleForwardTSN(ch)
	case *chunkReconfig:
		return a.handleReconfig(ch)
	case *chunkShutdown:
		return a.handleShutdown(ch)
	case *chunkShutdownAck:
		return a.handleShutdownAck()
	case *chunkShutdownComplete:
		return a.handleShutdownComplete()
	case *chunkAbort:
		return a.handleAbort(ch)
	case *chunkHeartbeat:
		return a.handleHeartbeat(ch)
	case *chunkHeartbeatAck:
		return a.handleHeartbeatAck(ch)
	case *chunkError:
		return nil
	default:
		return errChunkTypeUnhandled
	}
}

// handleInit is the server's passive-open response (spec.md §4.1 "Closed ->
// Established (passive)"). Collision handling for simultaneous INIT
// exchange (RFC 4960 §5.2) is out of scope; an INIT seen outside
// Closed/CookieWait/CookieEchoed is ignored.
func (a *Association) handleInit(c *chunkInit) error {
	if a.state != Closed && a.state != CookieWait && a.state != CookieEchoed {
		return nil
	}

	a.peerVerificationTag = c.initiateTag
	a.peerLastTSN = c.initialTSN - 1
	a.minTSN2MeasureRTT = a.myNextTSN
	a.peerRwnd = c.advertisedReceiverWindowCredit
	a.myMaxNumInboundStreams = min16(a.myMaxNumInboundStreams, c.numOutboundStreams)
	a.myMaxNumOutboundStreams = min16(a.myMaxNumOutboundStreams, c.numInboundStreams)
	a.useForwardTSN = c.supportsExtension(ctForwardTSN)
	a.cumulativeTSNAckPoint = a.myNextTSN - 1
	a.advancedPeerTSNAckPoint = a.myNextTSN - 1

	a.pushControl(a.buildInitAck())
	a.wakeWriteLoop()
	return nil
}

// handleInitAck is the client's reaction to the server's INIT-ACK: stash the
// state cookie, echo it back, and start waiting for COOKIE-ACK (spec.md
// §4.1 "CookieWait -> CookieEchoed").
func (a *Association) handleInitAck(c *chunkInitAck) error {
	if a.state != CookieWait {
		return nil
	}

	a.t1init.stop()
	a.storedInit = nil

	a.peerVerificationTag = c.initiateTag
	a.peerLastTSN = c.initialTSN - 1
	a.minTSN2MeasureRTT = a.myNextTSN
	a.peerRwnd = c.advertisedReceiverWindowCredit
	a.myMaxNumInboundStreams = min16(a.myMaxNumInboundStreams, c.numOutboundStreams)
	a.myMaxNumOutboundStreams = min16(a.myMaxNumOutboundStreams, c.numInboundStreams)
	a.useForwardTSN = c.supportsExtension(ctForwardTSN)
	a.cumulativeTSNAckPoint = a.myNextTSN - 1
	a.advancedPeerTSNAckPoint = a.myNextTSN - 1

	echo := &chunkCookieEcho{cookie: c.stateCookie()}
	a.storedCookieEcho = echo
	a.setState(CookieEchoed)

	a.pushControl(echo)
	a.wakeWriteLoop()
	a.t1cookie.start(a.rtoMgr.getRTO())
	return nil
}

// handleCookieEcho is the server's final handshake step: a cookie matching
// what it handed out moves the association straight to Established (no
// separate TCB-creation state is modeled; spec.md §9 treats the cookie as
// opaque, not a cryptographic anti-spoofing token).
func (a *Association) handleCookieEcho(c *chunkCookieEcho) error {
	switch a.state {
	case Closed:
		if !bytes.Equal(c.cookie, a.myCookie) {
			return errCookieMismatch
		}
		a.setState(Established)
		a.pushControl(&chunkCookieAck{})
		a.wakeWriteLoop()
		a.completeHandshakeLocked()
		return nil
	case Established:
		// Our COOKIE-ACK was presumably lost; resend it.
		a.pushControl(&chunkCookieAck{})
		a.wakeWriteLoop()
		return nil
	default:
		return nil
	}
}

func (a *Association) handleCookieAck() error {
	if a.state != CookieEchoed {
		return nil
	}
	a.t1cookie.stop()
	a.storedCookieEcho = nil
	a.setState(Established)
	a.completeHandshakeLocked()
	return nil
}

// handleDataChunk buffers an inbound DATA chunk and advances peerLastTSN
// over whatever run of in-order chunks is now contiguous (spec.md §4.3
// handle_data). Once the receive buffer is full only gap-filler chunks are
// accepted: the next in-order chunk, or one below the highest TSN already
// buffered. Any other chunk is dropped and left for the peer to retransmit.
func (a *Association) handleDataChunk(c *chunkPayloadData) error {
	a.stats.NDATAChunksRecv++

	if !sna32EQ(c.tsn, a.peerLastTSN+1) && a.advertisedRwndLocked() == 0 {
		highest, ok := a.payloadQueue.highestTSNReceived()
		if !ok || !sna32LT(c.tsn, highest) {
			return nil
		}
	}

	a.payloadQueue.push(c, a.peerLastTSN)
	a.advancePeerLastTSNLocked()

	// Chunks still buffered after advancing sit above a gap.
	if c.immediateSack || len(a.payloadQueue.dupTSN) > 0 || a.payloadQueue.size() > 0 {
		a.immediateAckTriggered = true
	} else {
		a.delayedAckTriggered = true
	}
	return nil
}

// advancePeerLastTSNLocked delivers every contiguous chunk now available at
// peerLastTSN+1 to its stream's reassembly queue, removing it from
// payloadQueue so only genuine gap-fillers remain there for SACK reporting.
func (a *Association) advancePeerLastTSNLocked() {
	for {
		pd, ok := a.payloadQueue.pop(a.peerLastTSN + 1)
		if !ok {
			break
		}
		a.peerLastTSN++
		a.getOrCreateStream(pd.streamIdentifier).handleData(pd)
	}
	if len(a.reconfigRequests) > 0 {
		a.resetStreamsIfAnyLocked()
	}
}

// handleSack applies a SACK to the inflight queue: cumulative/gap-ack
// accounting, congestion-window growth, fast-retransmit detection, and the
// T3-rtx restart-on-progress rule (spec.md §4.4).
func (a *Association) handleSack(c *chunkSelectiveAck) error {
	a.stats.NSACKsRecv++

	if sna32GT(a.cumulativeTSNAckPoint, c.cumulativeTSNAck) {
		return nil
	}

	a.peerRwnd = c.advertisedReceiverWindowCredit

	bytesAckedPerStream, totalBytesAcked, _, _ := a.processSelectiveAckLocked(c)

	if sna32LT(a.cumulativeTSNAckPoint, c.cumulativeTSNAck) {
		a.cumulativeTSNAckPoint = c.cumulativeTSNAck
		a.onCumulativeTSNAckPointAdvancedLocked(totalBytesAcked)
	}

	for id, nBytes := range bytesAckedPerStream {
		if s, ok := a.streams[id]; ok {
			s.onBufferReleased(uint64(nBytes))
		}
	}

	a.processFastRetransmissionLocked()
	a.checkShutdownDrainLocked()
	a.postprocessSackLocked()

	return nil
}

// processSelectiveAckLocked marks every inflight chunk covered by c's
// cumulative point or gap-ack blocks as acked, samples one RTT per round
// trip under Karn's algorithm, and increments miss-indicator on chunks the
// HTNA (highest TSN newly acked) rule skipped over.
func (a *Association) processSelectiveAckLocked(c *chunkSelectiveAck) (map[uint16]int, int, uint32, bool) {
	bytesAckedPerStream := map[uint16]int{}
	totalBytesAcked := 0
	var htna uint32
	htnaSet := false

	tsns := append([]uint32(nil), a.inflightQueue.sorted...)
	var newlyAcked []uint32

	for _, tsn := range tsns {
		pd, ok := a.inflightQueue.chunkMap[tsn]
		if !ok || pd.acked {
			continue
		}

		acked := sna32LTE(tsn, c.cumulativeTSNAck)
		if !acked {
			for _, b := range c.gapAckBlocks {
				if sna32GTE(tsn, c.cumulativeTSNAck+uint32(b.start)) && sna32LTE(tsn, c.cumulativeTSNAck+uint32(b.end)) {
					acked = true
					break
				}
			}
		}
		if !acked {
			continue
		}

		pd.acked = true
		newlyAcked = append(newlyAcked, tsn)
		bytesAckedPerStream[pd.streamIdentifier] += len(pd.userData)
		totalBytesAcked += len(pd.userData)

		if !htnaSet || sna32GT(tsn, htna) {
			htna = tsn
			htnaSet = true
		}

		if pd.nSent == 1 && sna32GTE(tsn, a.minTSN2MeasureRTT) {
			a.rtoMgr.setNewRTT(timeNow().Sub(pd.since))
			a.minTSN2MeasureRTT = a.myNextTSN
		}
	}

	if htnaSet {
		for _, tsn := range tsns {
			pd, ok := a.inflightQueue.chunkMap[tsn]
			if !ok || pd.acked {
				continue
			}
			if sna32LT(tsn, htna) {
				pd.missIndicator++
			}
		}
	}

	for _, tsn := range newlyAcked {
		a.inflightQueue.pop(tsn)
	}

	return bytesAckedPerStream, totalBytesAcked, htna, htnaSet
}

// onCumulativeTSNAckPointAdvancedLocked grows cwnd per RFC 4960 §7.2.1/7.2.2
// (slow start below ssthresh, congestion avoidance above it) and re-checks
// whether the FORWARD-TSN watermark can move past newly acked/abandoned
// chunks.
func (a *Association) onCumulativeTSNAckPointAdvancedLocked(totalBytesAcked int) {
	if a.cwnd <= a.ssthresh {
		increase := uint32(totalBytesAcked)
		if increase > a.mtu {
			increase = a.mtu
		}
		a.cwnd += increase
	} else {
		a.partialBytesAcked += uint32(totalBytesAcked)
		if a.partialBytesAcked >= a.cwnd {
			a.partialBytesAcked -= a.cwnd
			a.cwnd += a.mtu
		}
	}

	a.updateAdvancedPeerTSNAckPointLocked()
}

// updateAdvancedPeerTSNAckPointLocked advances advancedPeerTSNAckPoint over
// any contiguous run of acked-or-abandoned inflight chunks immediately
// following it, scheduling a FORWARD-TSN when the watermark moves (spec.md
// §4.7). A no-op unless the peer negotiated FORWARD-TSN support.
func (a *Association) updateAdvancedPeerTSNAckPointLocked() {
	if !a.useForwardTSN {
		return
	}

	point := a.advancedPeerTSNAckPoint
	if sna32LT(point, a.cumulativeTSNAckPoint) {
		point = a.cumulativeTSNAckPoint
	}

	for {
		pd, ok := a.inflightQueue.get(point + 1)
		if !ok || !(pd.acked || pd.abandoned) {
			break
		}
		point++
	}

	if sna32GT(point, a.advancedPeerTSNAckPoint) {
		a.advancedPeerTSNAckPoint = point
		a.pending.willSendForwardTSN = true
	}
}

// processFastRetransmissionLocked implements the fast-retransmit/fast-
// recovery entry and one-shot exit rule (spec.md §4.4): a single TSN
// reaching miss-indicator 3 halves cwnd (floor 4*mtu) exactly once per
// recovery episode; recovery ends once the peer acks past the TSN
// outstanding when it began.
func (a *Association) processFastRetransmissionLocked() {
	if a.inFastRecovery {
		if sna32GTE(a.cumulativeTSNAckPoint, a.fastRecoverExitPoint) {
			a.inFastRecovery = false
		}
		return
	}

	triggered := false
	for _, tsn := range a.inflightQueue.sorted {
		pd := a.inflightQueue.chunkMap[tsn]
		if !pd.acked && !pd.abandoned && pd.missIndicator >= 3 {
			triggered = true
			break
		}
	}
	if !triggered {
		return
	}

	a.ssthresh = max32(a.cwnd/2, 4*a.mtu)
	a.cwnd = a.ssthresh
	a.partialBytesAcked = 0
	a.inFastRecovery = true
	a.fastRecoverExitPoint = a.myNextTSN - 1
	a.pending.willRetransmitFast = true
}

// postprocessSackLocked restarts T3-rtx whenever the inflight queue is
// non-empty after a SACK and stops it once every outstanding chunk has been
// acked.
func (a *Association) postprocessSackLocked() {
	if a.inflightQueue.size() > 0 {
		a.restartT3RTXLocked()
	} else {
		a.t3rtx.stop()
	}
	a.wakeWriteLoop()
}

// checkShutdownDrainLocked schedules the next member of the shutdown
// handshake once both outbound queues have drained (spec.md §4.1
// ShutdownPending/ShutdownReceived -> ...).
func (a *Association) checkShutdownDrainLocked() {
	if a.pendingQueue.size() != 0 || a.inflightQueue.size() != 0 {
		return
	}
	switch a.state {
	case ShutdownPending:
		a.pending.willSendShutdown = true
		a.wakeWriteLoop()
	case ShutdownReceived:
		a.pending.willSendShutdownAck = true
		a.wakeWriteLoop()
	}
}

// handleForwardTSN fast-forwards peerLastTSN and per-stream reassembly past
// chunks the peer has abandoned under partial reliability (spec.md §4.7,
// RFC 3758).
func (a *Association) handleForwardTSN(c *chunkForwardTSN) error {
	if !a.useForwardTSN {
		if raw, err := c.marshal(); err == nil {
			a.pushControl(newErrorUnrecognizedChunkType(raw))
			a.wakeWriteLoop()
		}
		return errForwardTSNNotNegotiated
	}
	if sna32LTE(c.newCumulativeTSN, a.peerLastTSN) {
		return nil
	}

	for tsn := a.peerLastTSN + 1; sna32LTE(tsn, c.newCumulativeTSN); tsn++ {
		a.payloadQueue.pop(tsn)
	}
	a.peerLastTSN = c.newCumulativeTSN
	a.advancePeerLastTSNLocked()

	for _, fs := range c.streams {
		if s, ok := a.streams[fs.identifier]; ok {
			s.handleForwardTSNForOrdered(fs.sequence)
		}
	}
	for _, s := range a.streams {
		s.handleForwardTSNForUnordered(c.newCumulativeTSN)
	}

	a.immediateAckTriggered = true
	return nil
}

// handleReconfig dispatches a RECONFIG chunk's one or two parameters to the
// incoming-request or outgoing-response path (spec.md §4.6, RFC 6525).
func (a *Association) handleReconfig(c *chunkReconfig) error {
	for _, p := range [...]param{c.paramA, c.paramB} {
		switch v := p.(type) {
		case *paramOutgoingResetRequest:
			a.handleReconfigParamLocked(v)
		case *paramReconfigResponse:
			a.handleReconfigResponseLocked(v)
		}
	}
	a.immediateAckTriggered = true
	return nil
}

func (a *Association) handleShutdown(c *chunkShutdown) error {
	switch a.state {
	case Established:
		a.setState(ShutdownReceived)
		a.checkShutdownDrainLocked()
	case ShutdownSent:
		a.checkShutdownDrainLocked()
	}
	return nil
}

func (a *Association) handleShutdownAck() error {
	switch a.state {
	case ShutdownSent, ShutdownAckSent:
		a.t2shutdown.stop()
		a.pending.willSendShutdownComplete = true
		a.wakeWriteLoop()
	}
	return nil
}

func (a *Association) handleShutdownComplete() error {
	a.t2shutdown.stop()
	a.setState(Closed)
	go func() { _ = a.Close() }()
	return nil
}

func (a *Association) handleAbort(c *chunkAbort) error {
	a.failHandshakeLocked(errAssociationClosed)
	a.setState(Closed)
	go func() { _ = a.Close() }()
	return nil
}

// handleHeartbeat answers a HEARTBEAT with the same opaque info the peer
// sent, unexamined (RFC 4960 §8.3).
func (a *Association) handleHeartbeat(c *chunkHeartbeat) error {
	a.pushControl(&chunkHeartbeatAck{info: c.info})
	a.wakeWriteLoop()
	return nil
}

// handleHeartbeatAck feeds the round trip measured by Ping back into the
// RTO manager (SPEC_FULL.md supplemented feature 2).
func (a *Association) handleHeartbeatAck(c *chunkHeartbeatAck) error {
	sent, err := time.Parse(time.RFC3339Nano, string(c.info))
	if err != nil {
		return nil
	}
	a.rtoMgr.setNewRTT(timeNow().Sub(sent))
	return nil
}
