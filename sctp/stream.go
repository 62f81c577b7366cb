package sctp

import (
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// ReliabilityType selects a stream's partial-reliability policy (spec.md
// §4.7, RFC 3758). A stream's chunks are abandoned under T3-rtx expiry or
// FORWARD-TSN bookkeeping according to this policy; DCEP chunks are always
// treated as Reliable regardless of the stream's setting.
type ReliabilityType int

const (
	// ReliabilityTypeReliable never abandons a chunk; it is retransmitted
	// until acknowledged.
	ReliabilityTypeReliable ReliabilityType = iota
	// ReliabilityTypeRexmit abandons a chunk once it has been sent
	// ReliabilityValue times.
	ReliabilityTypeRexmit
	// ReliabilityTypeTimed abandons a chunk once ReliabilityValue
	// milliseconds have elapsed since it was first sent.
	ReliabilityTypeTimed
)

func (r ReliabilityType) String() string {
	switch r {
	case ReliabilityTypeReliable:
		return "Reliable"
	case ReliabilityTypeRexmit:
		return "Rexmit"
	case ReliabilityTypeTimed:
		return "Timed"
	default:
		return "unknown"
	}
}

// Stream is one SCTP stream within an Association: independent ordered or
// unordered delivery, its own reassembly queue and sequence counters, and a
// partial-reliability policy (spec.md §3).
type Stream struct {
	lock sync.RWMutex

	streamIdentifier   uint16
	defaultPayloadType payloadProtocolIdentifier

	reliabilityType  ReliabilityType
	reliabilityValue uint32
	unordered        bool

	reassembly *reassemblyQueue
	sequenceNumber uint16

	// association is a non-owning back-reference: lookup-only, used for
	// sendPayloadData/unregisterStream and the size limits, never cyclic ownership (spec.md §9,
	// "do NOT model as cyclic ownership").
	association *Association

	readNotifier chan struct{}
	closed       bool
	closeOnce    sync.Once

	bufferedAmount          uint64
	bufferedAmountLow       uint64
	onBufferedAmountLow     func()

	log logging.LeveledLogger
}

func newStream(id uint16, a *Association) *Stream {
	return &Stream{
		streamIdentifier: id,
		reassembly:       newReassemblyQueue(),
		association:      a,
		readNotifier:      make(chan struct{}, 1),
		log:              a.log,
	}
}

// StreamIdentifier returns this stream's numeric identifier.
func (s *Stream) StreamIdentifier() uint16 {
	return s.streamIdentifier
}

// SetDefaultPayloadType sets the PPID used by Write (as opposed to
// WriteSCTP, which takes an explicit PPID).
func (s *Stream) SetDefaultPayloadType(t payloadProtocolIdentifier) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.defaultPayloadType = t
}

// SetReliabilityParams configures this stream's partial-reliability policy.
// Reliable streams never abandon data; Rexmit(n) abandons a chunk once it
// has been sent n times; Timed(ms) abandons after ms have elapsed since
// first send.
func (s *Stream) SetReliabilityParams(t ReliabilityType, value uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reliabilityType = t
	s.reliabilityValue = value
}

func (s *Stream) reliability() (ReliabilityType, uint32) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.reliabilityType, s.reliabilityValue
}

// SetUnordered selects unordered delivery for subsequent Write/WriteSCTP
// calls on this stream (spec.md §4.5, RFC 4960 §6.6). Ordered is the
// default.
func (s *Stream) SetUnordered(unordered bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.unordered = unordered
}

// shouldAbandon decides whether pd should be marked abandoned under this
// stream's policy (spec.md §4.7). DCEP control chunks are exempt.
func (s *Stream) shouldAbandon(pd *chunkPayloadData) bool {
	if pd.payloadType == ppidDCEP {
		return false
	}
	t, v := s.reliability()
	switch t {
	case ReliabilityTypeRexmit:
		return pd.nSent >= v
	case ReliabilityTypeTimed:
		return uint32(time.Since(pd.since).Milliseconds()) >= v
	default:
		return false
	}
}

// Read reads one reassembled message's bytes into p, discarding the PPID.
func (s *Stream) Read(p []byte) (int, error) {
	n, _, err := s.ReadSCTP(p)
	return n, err
}

// ReadSCTP reads one reassembled message and returns its PPID.
func (s *Stream) ReadSCTP(p []byte) (int, payloadProtocolIdentifier, error) {
	for {
		s.lock.Lock()
		b, ppi, ok := s.reassembly.pop()
		closed := s.closed
		s.lock.Unlock()

		if ok {
			return copy(p, b), ppi, nil
		}
		if closed {
			return 0, 0, errStreamClosed
		}

		_, ok = <-s.readNotifier
		if !ok {
			// Drain any message that arrived concurrently with close.
			s.lock.Lock()
			b, ppi, ok = s.reassembly.pop()
			s.lock.Unlock()
			if ok {
				return copy(p, b), ppi, nil
			}
			return 0, 0, errStreamClosed
		}
	}
}

// handleData pushes an inbound DATA chunk's payload into reassembly and
// wakes a blocked reader, if any (caller holds the association lock).
func (s *Stream) handleData(pd *chunkPayloadData) {
	s.lock.Lock()
	s.reassembly.push(pd)
	s.lock.Unlock()

	select {
	case s.readNotifier <- struct{}{}:
	default:
	}
}

// handleForwardTSNForOrdered drops ordered reassembly state superseded by a
// FORWARD-TSN (spec.md §4.3).
func (s *Stream) handleForwardTSNForOrdered(newSSN uint16) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reassembly.forwardTSNForOrdered(newSSN)
}

// handleForwardTSNForUnordered discards superseded unordered fragments.
func (s *Stream) handleForwardTSNForUnordered(newCumulativeTSN uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reassembly.forwardTSNForUnordered(newCumulativeTSN)
}

// BufferedAmount returns the number of bytes handed to Write that have not
// yet been acknowledged by the peer.
func (s *Stream) BufferedAmount() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.bufferedAmount
}

// SetBufferedAmountLowThreshold sets onLow to fire each time acknowledged
// data leaves BufferedAmount at or below threshold.
func (s *Stream) SetBufferedAmountLowThreshold(threshold uint64, onLow func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.bufferedAmountLow = threshold
	s.onBufferedAmountLow = onLow
}

func (s *Stream) onBufferReleased(nBytes uint64) {
	s.lock.Lock()
	if nBytes > s.bufferedAmount {
		nBytes = s.bufferedAmount
	}
	s.bufferedAmount -= nBytes
	fire := s.onBufferedAmountLow != nil && s.bufferedAmount <= s.bufferedAmountLow
	cb := s.onBufferedAmountLow
	s.lock.Unlock()

	if fire && cb != nil {
		cb()
	}
}

// Write writes p using the stream's default PPID.
func (s *Stream) Write(p []byte) (int, error) {
	s.lock.RLock()
	ppi := s.defaultPayloadType
	s.lock.RUnlock()
	return s.WriteSCTP(p, ppi)
}

// WriteSCTP fragments p per the association's MTU and enqueues it for
// transmission on this stream with the given PPID.
func (s *Stream) WriteSCTP(p []byte, ppi payloadProtocolIdentifier) (int, error) {
	a := s.association
	if len(p) > int(a.maxMessageSize()) {
		return 0, errors.Wrapf(errOutboundPacketTooLarge, "len %d max %d", len(p), a.maxMessageSize())
	}

	chunks := s.packetize(p, ppi)

	s.lock.Lock()
	s.bufferedAmount += uint64(len(p))
	s.lock.Unlock()

	if err := a.sendPayloadData(chunks); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Stream) packetize(raw []byte, ppi payloadProtocolIdentifier) []*chunkPayloadData {
	s.lock.Lock()
	defer s.lock.Unlock()

	fragmentSize := s.association.maxPayloadSize()
	unordered := s.unordered

	var chunks []*chunkPayloadData

	if len(raw) == 0 {
		// RFC 4960 §6.2: a zero-length message is still one chunk.
		chunks = append(chunks, &chunkPayloadData{
			streamIdentifier:     s.streamIdentifier,
			beginningFragment:    true,
			endingFragment:       true,
			unordered:            unordered,
			payloadType:          ppi,
			streamSequenceNumber: s.sequenceNumber,
		})
	} else {
		i := 0
		remaining := len(raw)
		for remaining > 0 {
			l := minUint(fragmentSize, uint(remaining))
			chunks = append(chunks, &chunkPayloadData{
				streamIdentifier:     s.streamIdentifier,
				userData:             raw[i : i+int(l)],
				beginningFragment:    i == 0,
				endingFragment:       remaining-int(l) == 0,
				unordered:            unordered,
				payloadType:          ppi,
				streamSequenceNumber: s.sequenceNumber,
			})
			remaining -= int(l)
			i += int(l)
		}
	}

	s.sequenceNumber++
	return chunks
}

// Close unregisters the stream from its association and wakes any blocked
// reader with EOF. It does not send an RFC 6525 stream reset by itself; use
// Association.ResetStream for that.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.lock.Lock()
		s.closed = true
		s.lock.Unlock()
		close(s.readNotifier)
		s.association.unregisterStream(s.streamIdentifier)
	})
	return nil
}

// resetLocked marks the stream closed without unregistering it from the
// association's stream map itself; used when the association already holds
// a.lock and owns the map mutation (RFC 6525 stream reset completion).
func (s *Stream) resetLocked() {
	s.closeOnce.Do(func() {
		s.lock.Lock()
		s.closed = true
		s.lock.Unlock()
		close(s.readNotifier)
	})
}
