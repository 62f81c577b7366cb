package sctp

import (
	"io"
	"time"
)

// readLoop is the association's single reader: one carrier Read yields at
// most one SCTP packet (spec.md §6). A carrier error is fatal and closes
// the association (spec.md §5 Cancellation, §7 CarrierFatal).
func (a *Association) readLoop() {
	buf := make([]byte, receiveMTU)
	for {
		n, err := a.netConn.Read(buf)
		if err != nil {
			if err != io.EOF {
				a.log.Warnf("[%s] carrier read failed, closing association: %v", a.name, err)
			}
			a.failHandshake(err)
			_ = a.Close()
			return
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		if err := a.handleInboundPacket(raw); err != nil {
			// Decode/validation failures never abort the association
			// (spec.md §7 propagation policy); just log and keep reading.
			a.log.Debugf("[%s] dropping inbound packet: %v", a.name, err)
		}
	}
}

// writeLoop gathers outbound packets per the stable gather order in
// spec.md §4.2 and writes them to the carrier, suspending on the coalescing
// wakeup signal when there is nothing to emit.
func (a *Association) writeLoop() {
	for {
		packets, shouldClose := a.gatherOutbound()
		for _, p := range packets {
			if _, err := a.netConn.Write(p); err != nil {
				a.log.Warnf("[%s] carrier write failed, closing association: %v", a.name, err)
				_ = a.Close()
				return
			}
		}
		if shouldClose {
			_ = a.Close()
			return
		}

		select {
		case <-a.wakeWrite:
		case <-a.closedCh:
			return
		}
	}
}

// gatherOutbound assembles this pass's packets in the order required by
// spec.md §4.2: control packets, retransmits, new data + reconfig, fast
// retransmit, SACK, FORWARD-TSN, then the shutdown family.
func (a *Association) gatherOutbound() ([][]byte, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	var packets [][]byte
	packets = append(packets, a.controlQueue.popAll()...)

	switch a.state {
	case Established, ShutdownPending, ShutdownSent, ShutdownReceived:
		packets = append(packets, a.gatherDataRetransmitPacketsLocked()...)
		packets = append(packets, a.gatherNewDataAndReconfigPacketsLocked()...)
		packets = append(packets, a.gatherReconfigRetransmitPacketLocked()...)
		packets = append(packets, a.gatherFastRetransmitPacketLocked()...)
		packets = append(packets, a.gatherSackPacketLocked()...)
		packets = append(packets, a.gatherForwardTSNPacketLocked()...)
	}

	shutdownPackets, shouldClose := a.gatherShutdownPacketsLocked()
	packets = append(packets, shutdownPackets...)

	return packets, shouldClose
}

// packetize wraps chunks in a common header addressed to the peer.
func (a *Association) packetize(chunks ...chunk) []byte {
	p := &packet{
		sourcePort:      a.mySourcePort,
		destinationPort: a.peerDestinationPort,
		verificationTag: a.peerVerificationTag,
		chunks:          chunks,
	}
	raw, err := p.marshal()
	if err != nil {
		a.log.Errorf("[%s] failed to marshal outbound packet: %v", a.name, err)
		return nil
	}
	return raw
}

// pushControl marshals chunks into one packet and enqueues it on the
// control queue (out-of-band from congestion control, per spec.md §4.2).
func (a *Association) pushControl(chunks ...chunk) {
	raw := a.packetize(chunks...)
	if raw != nil {
		a.controlQueue.push(raw)
	}
}

func (a *Association) buildInit() *chunkInit {
	c := &chunkInit{}
	c.initiateTag = a.myVerificationTag
	c.advertisedReceiverWindowCredit = a.maxReceiveBufferSize
	c.numOutboundStreams = a.myMaxNumOutboundStreams
	c.numInboundStreams = a.myMaxNumInboundStreams
	c.initialTSN = a.myNextTSN
	c.params = []param{newParamSupportedExtensions()}
	return c
}

// buildInitAck answers an INIT with our own parameters plus the state
// cookie the peer must echo back unmodified (spec.md §4.1).
func (a *Association) buildInitAck() *chunkInitAck {
	c := &chunkInitAck{}
	c.initiateTag = a.myVerificationTag
	c.advertisedReceiverWindowCredit = a.maxReceiveBufferSize
	c.numOutboundStreams = a.myMaxNumOutboundStreams
	c.numInboundStreams = a.myMaxNumInboundStreams
	c.initialTSN = a.myNextTSN
	c.params = []param{newParamSupportedExtensions(), newParamStateCookie(a.myCookie)}
	return c
}

func (a *Association) sendInit() {
	a.lock.Lock()
	init := a.storedInit
	a.lock.Unlock()
	if init == nil {
		return
	}
	a.pushControl(init)
	a.wakeWriteLoop()
}

func (a *Association) sendCookieEcho() {
	a.lock.Lock()
	echo := a.storedCookieEcho
	a.lock.Unlock()
	if echo == nil {
		return
	}
	a.pushControl(echo)
	a.wakeWriteLoop()
}

// failHandshake delivers a failure on HandshakeDone exactly once, used by
// T1 failure callbacks and fatal carrier errors during the handshake.
func (a *Association) failHandshake(err error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.failHandshakeLocked(err)
}

// failHandshakeLocked is failHandshake for callers that already hold
// a.lock (inbound chunk handlers processing an ABORT mid-handshake).
func (a *Association) failHandshakeLocked(err error) {
	alreadyEstablished := a.state == Established || a.state >= ShutdownPending
	if alreadyEstablished || a.handshakeSent {
		return
	}
	a.handshakeSent = true
	select {
	case a.handshakeCh <- HandshakeResult{Err: err}:
	default:
	}
}

// completeHandshake signals a successful handshake exactly once.
func (a *Association) completeHandshake() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.completeHandshakeLocked()
}

// completeHandshakeLocked is completeHandshake for callers that already
// hold a.lock (handleCookieEcho/handleCookieAck).
func (a *Association) completeHandshakeLocked() {
	if a.handshakeSent {
		return
	}
	a.handshakeSent = true
	select {
	case a.handshakeCh <- HandshakeResult{}:
	default:
	}
}

// Ping sends an opportunistic HEARTBEAT to refresh srtt when no data is in
// flight (SPEC_FULL.md supplemented feature 2).
func (a *Association) Ping() {
	hb := &chunkHeartbeat{info: []byte(time.Now().Format(time.RFC3339Nano))}
	a.pushControl(hb)
	a.wakeWriteLoop()
}
