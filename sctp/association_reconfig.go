package sctp

// This file implements RFC 6525 stream reconfiguration: local initiation
// via ResetStream, and the receive-side handling of both directions of a
// RECONFIG exchange (spec.md §4.6).

// ResetStream asks the peer to stop delivering further data it has not yet
// sent on streamID, then unregisters the local stream once the request has
// been queued. The peer confirms with a RECONFIG response; until then the
// request is retransmitted by the T-reconfig timer.
func (a *Association) ResetStream(streamID uint16) error {
	a.lock.Lock()
	if a.state != Established {
		a.lock.Unlock()
		return errResetStreamBeforeEstablished
	}

	rsn := a.myNextRSN
	a.myNextRSN++

	req := &paramOutgoingResetRequest{
		reconfigRequestSequenceNumber: rsn,
		senderLastTSN:                 a.myNextTSN - 1,
		streamIdentifiers:              []uint16{streamID},
	}
	rc := &chunkReconfig{paramA: req}
	a.reconfigs[rsn] = rc

	if s, ok := a.streams[streamID]; ok {
		s.resetLocked()
		delete(a.streams, streamID)
	}

	a.pushControl(rc)
	needStart := !a.treconfig.isRunning()
	a.lock.Unlock()

	a.wakeWriteLoop()
	if needStart {
		a.treconfig.start(a.rtoMgr.getRTO())
	}
	return nil
}

// handleReconfigParamLocked records an incoming stream-reset request and
// tries to complete it immediately; a request naming TSNs we have not yet
// delivered waits in reconfigRequests until advancePeerLastTSNLocked
// catches up.
func (a *Association) handleReconfigParamLocked(req *paramOutgoingResetRequest) {
	if _, ok := a.reconfigRequests[req.reconfigRequestSequenceNumber]; !ok {
		a.reconfigRequests[req.reconfigRequestSequenceNumber] = req
	}
	a.resetStreamsIfAnyLocked()
}

// resetStreamsIfAnyLocked completes every deferred incoming reset request
// whose senderLastTSN has now been delivered: the named streams are closed
// (EOF to any blocked reader) and a success response is sent back.
func (a *Association) resetStreamsIfAnyLocked() {
	for rsn, req := range a.reconfigRequests {
		if sna32LT(a.peerLastTSN, req.senderLastTSN) {
			continue
		}

		for _, id := range req.streamIdentifiers {
			if s, ok := a.streams[id]; ok {
				s.resetLocked()
				delete(a.streams, id)
			}
		}
		delete(a.reconfigRequests, rsn)

		resp := &chunkReconfig{paramA: &paramReconfigResponse{
			reconfigResponseSequenceNumber: rsn,
			result:                         reconfigResultSuccessPerformed,
		}}
		a.pushControl(resp)
		a.wakeWriteLoop()
	}
}

// handleReconfigResponseLocked completes one of our own outstanding
// ResetStream requests.
func (a *Association) handleReconfigResponseLocked(resp *paramReconfigResponse) {
	if _, ok := a.reconfigs[resp.reconfigResponseSequenceNumber]; !ok {
		return
	}
	delete(a.reconfigs, resp.reconfigResponseSequenceNumber)
	if len(a.reconfigs) == 0 {
		a.treconfig.stop()
	}
}

// gatherReconfigRetransmitPacketLocked resends every outstanding stream-
// reset request when the T-reconfig timer fires (spec.md §4.2 step 2.5).
func (a *Association) gatherReconfigRetransmitPacketLocked() [][]byte {
	if !a.pending.willRetransmitReconfig {
		return nil
	}
	a.pending.willRetransmitReconfig = false

	var packets [][]byte
	for _, rc := range a.reconfigs {
		if raw := a.packetize(rc); raw != nil {
			packets = append(packets, raw)
		}
	}
	return packets
}
