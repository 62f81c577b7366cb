package sctp

import "time"

// gatherDataRetransmitPacketsLocked bundles every inflight chunk marked for
// retransmit by T3-rtx expiry into MTU-sized packets (spec.md §4.2 step 1).
// Caller holds a.lock.
func (a *Association) gatherDataRetransmitPacketsLocked() [][]byte {
	var toSend []*chunkPayloadData
	for _, tsn := range a.inflightQueue.sorted {
		pd := a.inflightQueue.chunkMap[tsn]
		if pd.acked || pd.abandoned || !pd.retransmit {
			continue
		}
		pd.retransmit = false
		pd.nSent++
		pd.since = timeNow()
		toSend = append(toSend, pd)
	}
	if len(toSend) == 0 {
		return nil
	}
	a.restartT3RTXLocked()
	return a.bundleDataChunksLocked(toSend)
}

// gatherNewDataAndReconfigPacketsLocked promotes pending chunks to inflight
// under congestion/flow control (spec.md §4.2 step 2, the pending->inflight
// promotion algorithm).
func (a *Association) gatherNewDataAndReconfigPacketsLocked() [][]byte {
	var toSend []*chunkPayloadData

	bytesOutstanding := uint32(a.inflightQueue.byteCount())
	availableRwnd := uint32(0)
	if a.peerRwnd > bytesOutstanding {
		availableRwnd = a.peerRwnd - bytesOutstanding
	}

	zeroWindowProbe := availableRwnd == 0 && a.inflightQueue.size() == 0 && a.pendingQueue.size() > 0

	for {
		c := a.pendingQueue.peek()
		if c == nil {
			break
		}
		chunkLen := uint32(len(c.userData))

		fitsCwnd := bytesOutstanding+chunkLen <= a.cwnd
		fitsRwnd := chunkLen <= availableRwnd

		if !fitsCwnd || !fitsRwnd {
			if zeroWindowProbe && len(toSend) == 0 {
				// Force exactly one chunk through as a zero-window probe
				// (spec.md §4.2, §8 scenario 4).
			} else {
				break
			}
		}

		c = a.pendingQueue.pop()
		c.tsn = a.myNextTSN
		a.myNextTSN++
		c.since = timeNow()
		c.nSent = 1

		if s, ok := a.streams[c.streamIdentifier]; ok && s.shouldAbandon(c) {
			c.abandoned = true
			a.updateAdvancedPeerTSNAckPointLocked()
		}

		a.inflightQueue.chunkMap[c.tsn] = c
		a.inflightQueue.sorted = append(a.inflightQueue.sorted, c.tsn)
		a.inflightQueue.nBytes += len(c.userData)

		bytesOutstanding += chunkLen
		if chunkLen <= availableRwnd {
			availableRwnd -= chunkLen
		} else {
			availableRwnd = 0
		}
		toSend = append(toSend, c)
		a.stats.NDATAChunksSent++

		if zeroWindowProbe {
			break // exactly one chunk on a probe
		}
	}

	if len(toSend) == 0 {
		return nil
	}

	if !a.t3rtx.isRunning() {
		a.t3rtx.start(a.rtoMgr.getRTO())
	}

	return a.bundleDataChunksLocked(toSend)
}

// bundleDataChunksLocked packs consecutive DATA chunks into packets no
// larger than MTU (spec.md §4.2 Bundling).
func (a *Association) bundleDataChunksLocked(chunks []*chunkPayloadData) [][]byte {
	var packets [][]byte
	var cur []chunk
	curLen := commonHeaderSize

	flush := func() {
		if len(cur) == 0 {
			return
		}
		if raw := a.packetize(cur...); raw != nil {
			packets = append(packets, raw)
		}
		cur = nil
		curLen = commonHeaderSize
	}

	for _, c := range chunks {
		l := c.length()
		if curLen+l > int(a.mtu) && len(cur) > 0 {
			flush()
		}
		cur = append(cur, c)
		curLen += l
	}
	flush()
	return packets
}

// gatherFastRetransmitPacketLocked sends exactly one packet of missed TSNs
// when fast retransmit was triggered (spec.md §4.2 step 3, §4.4 Fast
// recovery entry). cwnd is never adjusted here; it was already halved when
// miss-indicator reached 3.
func (a *Association) gatherFastRetransmitPacketLocked() [][]byte {
	if !a.pending.willRetransmitFast {
		return nil
	}
	a.pending.willRetransmitFast = false

	var chunks []chunk
	size := commonHeaderSize
	for _, tsn := range a.inflightQueue.sorted {
		pd := a.inflightQueue.chunkMap[tsn]
		if pd.acked || pd.abandoned {
			continue
		}
		if pd.missIndicator >= 3 && pd.nSent > 1 {
			continue
		}
		if pd.missIndicator < 3 {
			continue
		}
		if size+pd.length() > int(a.mtu) {
			break
		}
		pd.nSent++
		pd.since = timeNow()
		chunks = append(chunks, pd)
		size += pd.length()
		a.stats.NFastRetransmits++
	}
	if len(chunks) == 0 {
		return nil
	}
	if raw := a.packetize(chunks...); raw != nil {
		return [][]byte{raw}
	}
	return nil
}

// gatherSackPacketLocked emits a SACK when ack-state is Immediate
// (spec.md §4.2 step 4).
func (a *Association) gatherSackPacketLocked() [][]byte {
	if a.ackState != ackStateImmediate {
		return nil
	}
	a.ackState = ackStateIdle
	a.ackTimer.stop()

	sack := &chunkSelectiveAck{
		cumulativeTSNAck:               a.peerLastTSN,
		advertisedReceiverWindowCredit: a.advertisedRwndLocked(),
		gapAckBlocks:                   a.payloadQueue.getGapAckBlocks(a.peerLastTSN),
		duplicateTSN:                   a.payloadQueue.popDuplicates(),
	}
	a.stats.NSACKsSent++
	if raw := a.packetize(sack); raw != nil {
		return [][]byte{raw}
	}
	return nil
}

// advertisedRwndLocked computes the receive window we advertise to the
// peer, based on how much inbound data is still buffered waiting on reader
// consumption.
func (a *Association) advertisedRwndLocked() uint32 {
	used := uint32(a.payloadQueue.byteCount())
	for _, s := range a.streams {
		used += uint32(s.reassembly.byteCount())
	}
	if used >= a.maxReceiveBufferSize {
		return 0
	}
	return a.maxReceiveBufferSize - used
}

// gatherForwardTSNPacketLocked emits a FORWARD-TSN when one has been
// scheduled by partial reliability bookkeeping (spec.md §4.2 step 5).
func (a *Association) gatherForwardTSNPacketLocked() [][]byte {
	if !a.pending.willSendForwardTSN {
		return nil
	}
	a.pending.willSendForwardTSN = false

	f := &chunkForwardTSN{newCumulativeTSN: a.advancedPeerTSNAckPoint}
	seen := map[uint16]uint16{}
	for _, tsn := range a.inflightQueue.sorted {
		pd := a.inflightQueue.chunkMap[tsn]
		if !sna32LTE(pd.tsn, a.advancedPeerTSNAckPoint) {
			continue
		}
		if pd.unordered {
			continue
		}
		if cur, ok := seen[pd.streamIdentifier]; !ok || sna16LTE(cur, pd.streamSequenceNumber) {
			seen[pd.streamIdentifier] = pd.streamSequenceNumber
		}
	}
	for id, ssn := range seen {
		f.streams = append(f.streams, forwardTSNStream{identifier: id, sequence: ssn})
	}

	if raw := a.packetize(f); raw != nil {
		return [][]byte{raw}
	}
	return nil
}

// gatherShutdownPacketsLocked emits the scheduled member of the shutdown
// family (spec.md §4.2 step 6); SHUTDOWN-COMPLETE reports "close after
// flush" via the returned bool.
func (a *Association) gatherShutdownPacketsLocked() ([][]byte, bool) {
	var packets [][]byte

	if a.pending.willSendShutdown {
		a.pending.willSendShutdown = false
		sd := &chunkShutdown{cumulativeTSNAck: a.peerLastTSN}
		if raw := a.packetize(sd); raw != nil {
			packets = append(packets, raw)
		}
		a.setState(ShutdownSent)
		a.t2shutdown.start(a.rtoMgr.getRTO())
	}

	if a.pending.willSendShutdownAck {
		a.pending.willSendShutdownAck = false
		sa := &chunkShutdownAck{}
		if raw := a.packetize(sa); raw != nil {
			packets = append(packets, raw)
		}
		a.setState(ShutdownAckSent)
		a.t2shutdown.start(a.rtoMgr.getRTO())
	}

	if a.pending.willSendShutdownComplete {
		a.pending.willSendShutdownComplete = false
		sc := &chunkShutdownComplete{}
		if raw := a.packetize(sc); raw != nil {
			packets = append(packets, raw)
		}
		a.setState(Closed)
		return packets, true
	}

	return packets, false
}

func (a *Association) restartT3RTXLocked() {
	a.t3rtx.stop()
	a.t3rtx.start(a.rtoMgr.getRTO())
}

// timeNow reads the wall clock for chunk send timestamps and RTT samples.
// Ping's HEARTBEAT timestamp and Stream.shouldAbandon's Timed check read
// the clock directly.
func timeNow() time.Time { return time.Now() }
