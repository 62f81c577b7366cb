package sctp

import "encoding/binary"

// forwardTSNStream names one stream whose ordered delivery is being
// fast-forwarded to sequence by a FORWARD-TSN chunk.
type forwardTSNStream struct {
	identifier uint16
	sequence   uint16
}

// chunkForwardTSN is the FORWARD-TSN chunk (type 192, RFC 3758). It advances
// cumulative-tsn-ack-point past chunks the sender has abandoned under
// partial reliability (spec.md §4.7).
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                      New Cumulative TSN                       |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Stream Identifier 1        |  Stream Sequence Number 1       |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// /                            ......                            /
type chunkForwardTSN struct {
	chunkHeader
	newCumulativeTSN uint32
	streams          []forwardTSNStream
}

const forwardTSNFixedLength = 4

func (c *chunkForwardTSN) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctForwardTSN {
		return errChunkTypeUnhandled
	}
	if len(c.chunkHeader.raw) < forwardTSNFixedLength {
		return errChunkTooShort
	}
	c.newCumulativeTSN = binary.BigEndian.Uint32(c.chunkHeader.raw[0:])

	for offset := forwardTSNFixedLength; offset+4 <= len(c.chunkHeader.raw); offset += 4 {
		c.streams = append(c.streams, forwardTSNStream{
			identifier: binary.BigEndian.Uint16(c.chunkHeader.raw[offset:]),
			sequence:   binary.BigEndian.Uint16(c.chunkHeader.raw[offset+2:]),
		})
	}
	return nil
}

func (c *chunkForwardTSN) marshal() ([]byte, error) {
	raw := make([]byte, forwardTSNFixedLength+4*len(c.streams))
	binary.BigEndian.PutUint32(raw[0:], c.newCumulativeTSN)
	for i, s := range c.streams {
		binary.BigEndian.PutUint16(raw[forwardTSNFixedLength+4*i:], s.identifier)
		binary.BigEndian.PutUint16(raw[forwardTSNFixedLength+4*i+2:], s.sequence)
	}
	c.chunkHeader.typ = ctForwardTSN
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkForwardTSN) check() (bool, error) {
	return false, nil
}
