package sctp

import "sort"

// pendingMessage accumulates the fragments of one stream message, ordered
// or unordered.
type pendingMessage struct {
	sequenceNumber uint16
	payloadType    payloadProtocolIdentifier
	fragments      []*chunkPayloadData
	length         int
}

func (m *pendingMessage) push(c *chunkPayloadData) {
	m.fragments = append(m.fragments, c)
	m.length += len(c.userData)
	m.payloadType = c.payloadType
}

// complete reports whether every fragment from the beginning to the ending
// bit has arrived, in order.
func (m *pendingMessage) complete() bool {
	if len(m.fragments) == 0 {
		return false
	}
	if !m.fragments[0].beginningFragment {
		return false
	}
	expectedTSN := m.fragments[0].tsn
	for _, f := range m.fragments {
		if f.tsn != expectedTSN {
			return false
		}
		expectedTSN++
	}
	return m.fragments[len(m.fragments)-1].endingFragment
}

func (m *pendingMessage) assemble() []byte {
	b := make([]byte, m.length)
	i := 0
	for _, f := range m.fragments {
		i += copy(b[i:], f.userData)
	}
	return b
}

// reassemblyQueue reorders and defragments one stream's inbound chunks into
// whole messages, delivered to readers in original order for ordered
// messages (spec.md §8 Reassembly round-trip).
type reassemblyQueue struct {
	ordered        []*pendingMessage // sorted by sequenceNumber
	unordered      []*pendingMessage // FIFO of completed/in-progress unordered messages, delivered as they complete
	expectedSeqNum uint16
	started        bool
	nBytes         int
}

func newReassemblyQueue() *reassemblyQueue {
	return &reassemblyQueue{}
}

func (r *reassemblyQueue) push(c *chunkPayloadData) {
	r.nBytes += len(c.userData)

	if c.unordered {
		// Unordered fragments of the same message share streamSequenceNumber
		// only coincidentally (senders need not set it meaningfully); group by
		// contiguous TSN runs instead: extend the last in-progress unordered
		// message if it isn't complete yet and its tail directly precedes c.
		if n := len(r.unordered); n > 0 {
			last := r.unordered[n-1]
			if !last.complete() && len(last.fragments) > 0 && last.fragments[len(last.fragments)-1].tsn+1 == c.tsn {
				last.push(c)
				return
			}
		}
		r.unordered = append(r.unordered, &pendingMessage{fragments: []*chunkPayloadData{c}, length: len(c.userData), payloadType: c.payloadType})
		return
	}

	if !r.started {
		r.expectedSeqNum = c.streamSequenceNumber
		r.started = true
	}

	i := sort.Search(len(r.ordered), func(i int) bool {
		return sna16LTE(c.streamSequenceNumber, r.ordered[i].sequenceNumber)
	})
	if i < len(r.ordered) && r.ordered[i].sequenceNumber == c.streamSequenceNumber {
		r.ordered[i].push(c)
		return
	}
	m := &pendingMessage{sequenceNumber: c.streamSequenceNumber}
	m.push(c)
	r.ordered = append(r.ordered, nil)
	copy(r.ordered[i+1:], r.ordered[i:])
	r.ordered[i] = m
}

// pop returns the next deliverable message, preferring a completed
// unordered message (unordered has no delivery-order requirement) and
// otherwise the next in-sequence ordered message.
func (r *reassemblyQueue) pop() ([]byte, payloadProtocolIdentifier, bool) {
	for i, m := range r.unordered {
		if m.complete() {
			b := m.assemble()
			r.unordered = append(r.unordered[:i], r.unordered[i+1:]...)
			r.nBytes -= len(b)
			return b, m.payloadType, true
		}
	}

	if len(r.ordered) > 0 {
		m := r.ordered[0]
		if m.sequenceNumber == r.expectedSeqNum && m.complete() {
			b := m.assemble()
			r.ordered = r.ordered[1:]
			r.expectedSeqNum++
			r.nBytes -= len(b)
			return b, m.payloadType, true
		}
	}
	return nil, 0, false
}

func (r *reassemblyQueue) byteCount() int {
	return r.nBytes
}

// forwardTSNForOrdered drops any buffered ordered message at or before
// newSSN, advancing expectedSeqNum past it (spec.md §4.3 handle_forward_tsn
// per-stream notification).
func (r *reassemblyQueue) forwardTSNForOrdered(newSSN uint16) {
	for len(r.ordered) > 0 && sna16LTE(r.ordered[0].sequenceNumber, newSSN) {
		r.nBytes -= r.ordered[0].length
		r.ordered = r.ordered[1:]
	}
	if sna16LTE(r.expectedSeqNum, newSSN) {
		r.expectedSeqNum = newSSN + 1
	}
}

// forwardTSNForUnordered discards unordered fragments superseded by
// newCumulativeTSN (spec.md §4.3 broadcast cleanup).
func (r *reassemblyQueue) forwardTSNForUnordered(newCumulativeTSN uint32) {
	kept := r.unordered[:0]
	for _, m := range r.unordered {
		if len(m.fragments) == 0 {
			continue
		}
		last := m.fragments[len(m.fragments)-1].tsn
		if sna32LTE(last, newCumulativeTSN) && !m.complete() {
			r.nBytes -= m.length
			continue
		}
		kept = append(kept, m)
	}
	r.unordered = kept
}
