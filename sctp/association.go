package sctp

import (
	"sync"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pkg/errors"
)

// AssociationStats are read-only counters for introspection and tests that
// want to assert retransmit/ack behavior without racing a timer (SPEC_FULL.md
// supplemented feature 1, grounded on original_source's AssociationStats).
type AssociationStats struct {
	NDATAChunksSent     uint64
	NDATAChunksRecv     uint64
	NSACKsSent          uint64
	NSACKsRecv          uint64
	NT3Timeouts         uint64
	NAckTimeouts        uint64
	NFastRetransmits    uint64
}

// pendingOutbound tracks one-shot outbound intents set by handlers and
// consumed by the write-loop gather pass (spec.md §3 "pending outbound
// intents").
type pendingOutbound struct {
	willSendShutdown        bool
	willSendShutdownAck     bool
	willSendShutdownComplete bool
	willSendForwardTSN      bool
	willRetransmitFast      bool
	willRetransmitReconfig  bool
}

// Association is the per-connection control block described by spec.md §3:
// the four-way handshake, reliable multi-stream transfer, congestion/flow
// control, partial reliability, and stream reconfiguration all live here.
// All mutating methods are documented as "caller holds a.lock" unless noted.
type Association struct {
	lock sync.Mutex

	name string
	log  logging.LeveledLogger

	netConn Carrier

	state AssociationState

	myVerificationTag   uint32
	peerVerificationTag uint32

	mySourcePort      uint16
	peerDestinationPort uint16

	myNextTSN     uint32 // next TSN to assign to an outbound chunk
	peerLastTSN   uint32 // cumulative TSN received from peer, in-order
	minTSN2MeasureRTT uint32

	cumulativeTSNAckPoint    uint32 // highest TSN peer has fully acked
	advancedPeerTSNAckPoint  uint32 // watermark for FORWARD-TSN (partial reliability)
	useForwardTSN            bool

	cwnd               uint32
	ssthresh           uint32
	rwnd               uint32 // set to maxReceiveBufferSize at creation; the advertised window comes from advertisedRwndLocked
	peerRwnd           uint32 // peer's advertised a_rwnd, flow-control limit on our sends
	partialBytesAcked  uint32
	inFastRecovery     bool
	fastRecoverExitPoint uint32

	mtu                  uint32
	maxPayloadSizeV      uint32
	maxReceiveBufferSize uint32
	maxMessageSizeV      uint32

	myMaxNumOutboundStreams uint16
	myMaxNumInboundStreams  uint16

	streams map[uint16]*Stream

	reconfigs        map[uint32]*chunkReconfig // rsn -> outstanding reconfig we sent, for retransmission
	reconfigRequests map[uint32]*paramOutgoingResetRequest // rsn -> peer's outgoing reset request awaiting execution
	myNextRSN        uint32 // next reconfig request sequence number to assign

	storedInit       *chunkInit
	storedCookieEcho *chunkCookieEcho
	myCookie         []byte

	t1init     *rtxTimer
	t1cookie   *rtxTimer
	t2shutdown *rtxTimer
	t3rtx      *rtxTimer
	treconfig  *rtxTimer
	ackTimer   *ackTimer
	rtoMgr     *rtoManager

	ackState ackState
	ackMode  AckMode

	payloadQueue  *payloadQueue // inbound, TSN-indexed
	inflightQueue *payloadQueue // outbound, sent but not fully acked
	pendingQueue  *pendingQueue
	controlQueue  *controlQueue

	bytesSent     uint64
	bytesReceived uint64

	pending pendingOutbound

	stats AssociationStats

	wakeWrite chan struct{} // single-slot coalescing wakeup (spec.md §5)

	acceptCh     chan *Stream
	handshakeCh  chan HandshakeResult
	handshakeSent bool
	closedCh     chan struct{}
	closeOnce    sync.Once

	delayedAckTriggered    bool
	immediateAckTriggered  bool
}

const (
	acceptChSize = 16
)

func fillConfigDefaults(c *Config) {
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if c.MaxReceiveBufferSize == 0 {
		c.MaxReceiveBufferSize = defaultMaxReceiveBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
}

func newAssociation(c Config) *Association {
	fillConfigDefaults(&c)

	name := c.Name
	if name == "" {
		name = generateName()
	}

	a := &Association{
		name:                 name,
		log:                  c.LoggerFactory.NewLogger("sctp"),
		netConn:              c.NetConn,
		state:                Closed,
		mtu:                  initialMTU,
		maxReceiveBufferSize: c.MaxReceiveBufferSize,
		maxMessageSizeV:      c.MaxMessageSize,
		streams:              map[uint16]*Stream{},
		reconfigs:            map[uint32]*chunkReconfig{},
		reconfigRequests:     map[uint32]*paramOutgoingResetRequest{},
		rtoMgr:               newRTOManager(),
		payloadQueue:         newPayloadQueue(),
		inflightQueue:        newPayloadQueue(),
		pendingQueue:         newPendingQueue(),
		controlQueue:         newControlQueue(),
		wakeWrite:            make(chan struct{}, 1),
		acceptCh:             make(chan *Stream, acceptChSize),
		handshakeCh:          make(chan HandshakeResult, 1),
		closedCh:             make(chan struct{}),
		myMaxNumInboundStreams: 65535,
		myMaxNumOutboundStreams: 65535,
	}
	a.maxPayloadSizeV = initialMTU - commonHeaderSize - dataChunkHeaderSize
	a.cwnd = initialCwnd(a.mtu)
	a.ssthresh = 0x7fffffff
	a.peerRwnd = 0
	a.rwnd = a.maxReceiveBufferSize

	a.t1init = newRTXTimer(timerT1Init, a, maxInitRetrans)
	a.t1cookie = newRTXTimer(timerT1Cookie, a, maxInitRetrans)
	a.t2shutdown = newRTXTimer(timerT2Shutdown, a, 0)
	a.t3rtx = newRTXTimer(timerT3RTX, a, 0)
	a.treconfig = newRTXTimer(timerReconfig, a, 0)
	a.ackTimer = newAckTimer(a)

	return a
}

// initialCwnd computes the RFC 4960 §7.2.1 initial congestion window:
// min(4*MTU, max(2*MTU, 4380)), and never below one MTU (spec.md §3
// invariant cwnd >= mtu).
func initialCwnd(mtu uint32) uint32 {
	c := min32(4*mtu, max32(2*mtu, 4380))
	return max32(c, mtu)
}

// Client runs the active (connecting) side of the handshake: sends INIT and
// waits for the peer's INIT-ACK/COOKIE-ACK.
func Client(c Config) (*Association, error) {
	a := newAssociation(c)
	// DESIGN.md Open Question 1: Config carries no port fields, so both
	// sides fix source/destination port at 5000, matching the single
	// well-known SCTP port WebRTC data channels negotiate out-of-band.
	a.mySourcePort = 5000
	a.peerDestinationPort = 5000

	a.myVerificationTag = randutil.NewMathRandomGenerator().Uint32()
	a.myNextTSN = randutil.NewMathRandomGenerator().Uint32()
	a.minTSN2MeasureRTT = a.myNextTSN

	go a.readLoop()
	go a.writeLoop()

	a.lock.Lock()
	a.setState(CookieWait)
	a.storedInit = a.buildInit()
	a.lock.Unlock()

	a.sendInit()
	a.t1init.start(a.rtoMgr.getRTO())

	return a, nil
}

// Server runs the passive (accepting) side: waits for an INIT from the
// carrier and replies per spec.md §4.1 "Closed -> Established (passive)".
func Server(c Config) (*Association, error) {
	a := newAssociation(c)
	a.mySourcePort = 5000
	a.peerDestinationPort = 5000

	a.myVerificationTag = randutil.NewMathRandomGenerator().Uint32()
	a.myNextTSN = randutil.NewMathRandomGenerator().Uint32()
	a.minTSN2MeasureRTT = a.myNextTSN
	cookie, err := randutil.GenerateCryptoRandomString(32, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate state cookie")
	}
	a.myCookie = []byte(cookie)

	go a.readLoop()
	go a.writeLoop()

	return a, nil
}

// Name returns this association's logging identifier.
func (a *Association) Name() string { return a.name }

// State returns the current association state.
func (a *Association) State() AssociationState {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.state
}

// Stats returns a snapshot of the association's counters.
func (a *Association) Stats() AssociationStats {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.stats
}

func (a *Association) maxMessageSize() uint32 {
	return a.maxMessageSizeV
}

// maxPayloadSize returns the largest user-data byte count that fits in one
// DATA chunk within the current MTU.
func (a *Association) maxPayloadSize() uint {
	return uint(a.maxPayloadSizeV)
}

// setState transitions the association and logs the change; caller holds
// a.lock.
func (a *Association) setState(s AssociationState) {
	if a.state == s {
		return
	}
	a.log.Debugf("[%s] state change: %s -> %s", a.name, a.state, s)
	a.state = s
}

// wakeWriteLoop implements the single-slot coalescing wakeup (spec.md §5):
// setting it while already set is idempotent.
func (a *Association) wakeWriteLoop() {
	select {
	case a.wakeWrite <- struct{}{}:
	default:
	}
}

// OpenStream creates and registers a new outbound stream. The peer learns
// of it implicitly on the first DATA chunk it carries (this module has no
// separate stream-open handshake chunk; DCEP, layered above, handles
// announcing stream purpose).
func (a *Association) OpenStream(streamIdentifier uint16, ppid payloadProtocolIdentifier) (*Stream, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if s, ok := a.streams[streamIdentifier]; ok {
		return s, nil
	}

	s := newStream(streamIdentifier, a)
	s.defaultPayloadType = ppid
	a.streams[streamIdentifier] = s
	return s, nil
}

func (a *Association) getOrCreateStream(id uint16) *Stream {
	if s, ok := a.streams[id]; ok {
		return s
	}
	s := newStream(id, a)
	a.streams[id] = s

	select {
	case a.acceptCh <- s:
	default:
		a.log.Warnf("[%s] AcceptStream channel full, dropping stream-accepted event for stream %d", a.name, id)
	}
	return s
}

func (a *Association) unregisterStream(id uint16) {
	a.lock.Lock()
	defer a.lock.Unlock()
	delete(a.streams, id)
}

// sendPayloadData enqueues chunks for transmission. It is a local API error
// to call this before the association is Established (spec.md §7).
func (a *Association) sendPayloadData(chunks []*chunkPayloadData) error {
	a.lock.Lock()
	state := a.state
	if state != Established && state != ShutdownPending && state != ShutdownReceived {
		a.lock.Unlock()
		return errAssociationNotEstablished
	}
	for _, c := range chunks {
		a.pendingQueue.push(c)
	}
	a.lock.Unlock()

	a.wakeWriteLoop()
	return nil
}

// Shutdown begins a graceful close: once the inflight queue drains, SHUTDOWN
// is sent (spec.md §4.1 Established -> ShutdownPending -> ShutdownSent).
func (a *Association) Shutdown() error {
	a.lock.Lock()
	if a.state != Established {
		a.lock.Unlock()
		return errors.Errorf("cannot shutdown from state %s", a.state)
	}
	a.setState(ShutdownPending)
	a.checkShutdownDrainLocked()
	a.lock.Unlock()

	a.wakeWriteLoop()
	return nil
}

// Close tears the association down immediately: closes every timer (a fire
// that reaches a closed timer is dropped; a timer callback already running
// is not waited for), fails pending stream reads with EOF, and exits the
// read/write loops (spec.md §5 Cancellation).
func (a *Association) Close() error {
	a.closeOnce.Do(func() {
		a.lock.Lock()
		a.setState(Closed)
		streams := make([]*Stream, 0, len(a.streams))
		for _, s := range a.streams {
			streams = append(streams, s)
		}
		a.lock.Unlock()

		a.t1init.close()
		a.t1cookie.close()
		a.t2shutdown.close()
		a.t3rtx.close()
		a.treconfig.close()
		a.ackTimer.close()

		for _, s := range streams {
			_ = s.Close()
		}

		_ = a.netConn.Close()
		close(a.closedCh)
	})
	return nil
}
