package sctp

// This file implements rtxTimerObserver and ackTimerObserver for
// *Association, the callbacks newAssociation wires every timer to
// (spec.md §4.2 "five retransmission timers plus one ack timer").

// onRetransmissionTimeout fires when one of the five rtx timers expires
// without having been stopped in time.
func (a *Association) onRetransmissionTimeout(id rtxTimerID, nRtos uint) {
	a.lock.Lock()
	defer a.lock.Unlock()

	switch id {
	case timerT1Init:
		if a.storedInit == nil {
			return
		}
		a.pushControl(a.storedInit)
		a.wakeWriteLoop()
		a.t1init.start(a.rtoMgr.getRTO())

	case timerT1Cookie:
		if a.storedCookieEcho == nil {
			return
		}
		a.pushControl(a.storedCookieEcho)
		a.wakeWriteLoop()
		a.t1cookie.start(a.rtoMgr.getRTO())

	case timerT2Shutdown:
		switch a.state {
		case ShutdownSent:
			a.pending.willSendShutdown = true
		case ShutdownAckSent:
			a.pending.willSendShutdownAck = true
		default:
			return
		}
		a.wakeWriteLoop()
		a.t2shutdown.start(a.rtoMgr.getRTO())

	case timerT3RTX:
		a.stats.NT3Timeouts++
		a.onT3RTXTimeoutLocked()
		if a.inflightQueue.size() > 0 {
			a.t3rtx.start(a.rtoMgr.getRTO())
		}
		a.wakeWriteLoop()

	case timerReconfig:
		if len(a.reconfigs) == 0 {
			return
		}
		a.pending.willRetransmitReconfig = true
		a.wakeWriteLoop()
		a.treconfig.start(a.rtoMgr.getRTO())
	}
}

// onT3RTXTimeoutLocked applies RFC 4960 §6.3.3's T3-rtx expiry rule: cut
// cwnd back to one MTU (slow-start restart), and mark every outstanding,
// not-yet-abandoned chunk for retransmission unless this stream's
// partial-reliability policy now abandons it instead.
func (a *Association) onT3RTXTimeoutLocked() {
	a.ssthresh = max32(a.cwnd/2, 4*a.mtu)
	a.cwnd = a.mtu
	a.partialBytesAcked = 0

	abandonedAny := false
	for _, tsn := range a.inflightQueue.sorted {
		pd := a.inflightQueue.chunkMap[tsn]
		if pd.acked || pd.abandoned {
			continue
		}
		if s, ok := a.streams[pd.streamIdentifier]; ok && s.shouldAbandon(pd) {
			pd.abandoned = true
			abandonedAny = true
			continue
		}
		pd.retransmit = true
	}

	if abandonedAny {
		a.updateAdvancedPeerTSNAckPointLocked()
	}
}

// onRetransmissionFailure fires once a timer's retransmit budget (currently
// only T1-init/T1-cookie bound one) is exhausted (spec.md §7 HandshakeFailed).
func (a *Association) onRetransmissionFailure(id rtxTimerID) {
	switch id {
	case timerT1Init, timerT1Cookie:
		a.failHandshake(errHandshakeFailed)
		_ = a.Close()
	case timerT3RTX:
		a.log.Warnf("[%s] T3-rtx retransmission failure, closing association", a.name)
		_ = a.Close()
	}
}

// onAckTimeout fires 200ms after a chunk set ack-state to Delay without a
// later chunk upgrading it to Immediate (spec.md §4.3).
func (a *Association) onAckTimeout() {
	a.lock.Lock()
	a.stats.NAckTimeouts++
	a.ackState = ackStateImmediate
	a.lock.Unlock()

	a.wakeWriteLoop()
}
