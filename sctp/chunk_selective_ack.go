package sctp

import "encoding/binary"

// gapAckBlock is one (start,end) run of TSNs received after a gap, offset
// from cumulativeTSNAck. [cumulativeTSNAck+start, cumulativeTSNAck+end] are
// all received.
type gapAckBlock struct {
	start uint16
	end   uint16
}

// chunkSelectiveAck is the SACK chunk (type 3): the cumulative ack point,
// gap-ack blocks for out-of-order arrivals, and duplicate TSNs observed
// since the last SACK.
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                      Cumulative TSN Ack                       |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          Advertised Receiver Window Credit (a_rwnd)           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// | Number of Gap Ack Blocks = N  | Number of Duplicate TSNs = X  |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Gap Ack Block #1 Start       |  Gap Ack Block #1 End         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// /                           ......                             /
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                       Duplicate TSN 1                         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// /                           ......                             /
type chunkSelectiveAck struct {
	chunkHeader
	cumulativeTSNAck               uint32
	advertisedReceiverWindowCredit uint32
	gapAckBlocks                   []gapAckBlock
	duplicateTSN                   []uint32
}

const selectiveAckFixedLength = 12

func (c *chunkSelectiveAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctSack {
		return errChunkTypeUnhandled
	}
	if len(c.chunkHeader.raw) < selectiveAckFixedLength {
		return errChunkTooShort
	}

	c.cumulativeTSNAck = binary.BigEndian.Uint32(c.chunkHeader.raw[0:])
	c.advertisedReceiverWindowCredit = binary.BigEndian.Uint32(c.chunkHeader.raw[4:])
	numGapBlocks := binary.BigEndian.Uint16(c.chunkHeader.raw[8:])
	numDupTSN := binary.BigEndian.Uint16(c.chunkHeader.raw[10:])

	offset := selectiveAckFixedLength
	for i := uint16(0); i < numGapBlocks; i++ {
		if offset+4 > len(c.chunkHeader.raw) {
			return errChunkTooShort
		}
		c.gapAckBlocks = append(c.gapAckBlocks, gapAckBlock{
			start: binary.BigEndian.Uint16(c.chunkHeader.raw[offset:]),
			end:   binary.BigEndian.Uint16(c.chunkHeader.raw[offset+2:]),
		})
		offset += 4
	}
	for i := uint16(0); i < numDupTSN; i++ {
		if offset+4 > len(c.chunkHeader.raw) {
			return errChunkTooShort
		}
		c.duplicateTSN = append(c.duplicateTSN, binary.BigEndian.Uint32(c.chunkHeader.raw[offset:]))
		offset += 4
	}
	return nil
}

func (c *chunkSelectiveAck) marshal() ([]byte, error) {
	raw := make([]byte, selectiveAckFixedLength+4*len(c.gapAckBlocks)+4*len(c.duplicateTSN))
	binary.BigEndian.PutUint32(raw[0:], c.cumulativeTSNAck)
	binary.BigEndian.PutUint32(raw[4:], c.advertisedReceiverWindowCredit)
	binary.BigEndian.PutUint16(raw[8:], uint16(len(c.gapAckBlocks)))
	binary.BigEndian.PutUint16(raw[10:], uint16(len(c.duplicateTSN)))

	offset := selectiveAckFixedLength
	for _, b := range c.gapAckBlocks {
		binary.BigEndian.PutUint16(raw[offset:], b.start)
		binary.BigEndian.PutUint16(raw[offset+2:], b.end)
		offset += 4
	}
	for _, d := range c.duplicateTSN {
		binary.BigEndian.PutUint32(raw[offset:], d)
		offset += 4
	}

	c.chunkHeader.typ = ctSack
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkSelectiveAck) check() (bool, error) {
	return false, nil
}
