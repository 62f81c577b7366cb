package sctp

import "sort"

// maxDupTSNTracked bounds the duplicate-TSN set reported in the next SACK,
// matching the loose upper bound other SCTP stacks use so a burst of
// retransmits of one TSN can't grow this list unboundedly.
const maxDupTSNTracked = 256

// payloadQueue is the TSN-indexed ordered map of received-but-not-yet-
// cumulatively-acked DATA chunks (spec.md §3, PayloadQueue). It backs gap-ack
// block computation and duplicate-TSN detection for outbound SACKs.
type payloadQueue struct {
	chunkMap      map[uint32]*chunkPayloadData
	sorted        []uint32 // kept sorted in serial-number order
	dupTSN        []uint32
	nBytes        int
}

func newPayloadQueue() *payloadQueue {
	return &payloadQueue{chunkMap: map[uint32]*chunkPayloadData{}}
}

// canPush reports whether tsn is new information: not already buffered and
// not at/below cumulativeTSN (spec.md §4.3 handle_data).
func (q *payloadQueue) canPush(tsn, cumulativeTSN uint32) bool {
	if _, ok := q.chunkMap[tsn]; ok {
		return false
	}
	return sna32GT(tsn, cumulativeTSN)
}

// push inserts pd keyed by its TSN, recording a duplicate if it was already
// present or already covered by cumulativeTSN.
func (q *payloadQueue) push(pd *chunkPayloadData, cumulativeTSN uint32) {
	tsn := pd.tsn
	if _, ok := q.chunkMap[tsn]; ok || sna32LTE(tsn, cumulativeTSN) {
		if len(q.dupTSN) < maxDupTSNTracked {
			q.dupTSN = append(q.dupTSN, tsn)
		}
		return
	}

	q.chunkMap[tsn] = pd
	q.nBytes += len(pd.userData)

	i := sort.Search(len(q.sorted), func(i int) bool { return sna32GTE(q.sorted[i], tsn) })
	q.sorted = append(q.sorted, 0)
	copy(q.sorted[i+1:], q.sorted[i:])
	q.sorted[i] = tsn
}

// pop removes and returns the chunk with the given TSN, wherever it sits in
// the queue; it reports false if no such chunk is buffered.
func (q *payloadQueue) pop(tsn uint32) (*chunkPayloadData, bool) {
	pd, ok := q.chunkMap[tsn]
	if !ok {
		return nil, false
	}
	delete(q.chunkMap, tsn)
	q.nBytes -= len(pd.userData)
	if len(q.sorted) > 0 && q.sorted[0] == tsn {
		q.sorted = q.sorted[1:]
	} else {
		for i, t := range q.sorted {
			if t == tsn {
				q.sorted = append(q.sorted[:i], q.sorted[i+1:]...)
				break
			}
		}
	}
	return pd, true
}

// get looks up a buffered chunk without removing it.
func (q *payloadQueue) get(tsn uint32) (*chunkPayloadData, bool) {
	pd, ok := q.chunkMap[tsn]
	return pd, ok
}

func (q *payloadQueue) popDuplicates() []uint32 {
	d := q.dupTSN
	q.dupTSN = nil
	return d
}

// getGapAckBlocks computes the gap-ack blocks describing exactly the set of
// buffered TSNs above cumulativeTSN (spec.md §8 Gap-ack correctness).
func (q *payloadQueue) getGapAckBlocks(cumulativeTSN uint32) []gapAckBlock {
	var blocks []gapAckBlock
	var cur *gapAckBlock

	for _, tsn := range q.sorted {
		if sna32LTE(tsn, cumulativeTSN) {
			continue
		}
		diff := uint16(tsn - cumulativeTSN)
		if cur != nil && cur.end+1 == diff {
			cur.end = diff
			continue
		}
		if cur != nil {
			blocks = append(blocks, *cur)
		}
		cur = &gapAckBlock{start: diff, end: diff}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

func (q *payloadQueue) size() int {
	return len(q.chunkMap)
}

func (q *payloadQueue) byteCount() int {
	return q.nBytes
}

// highestTSNReceived reports the largest TSN currently buffered (used for
// the gap-filler acceptance exception in spec.md §4.3).
func (q *payloadQueue) highestTSNReceived() (uint32, bool) {
	if len(q.sorted) == 0 {
		return 0, false
	}
	return q.sorted[len(q.sorted)-1], true
}
