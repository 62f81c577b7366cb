package sctp

import (
	"encoding/binary"
	"fmt"
	"time"
)

// payloadProtocolIdentifier is the opaque PPID passed through to the
// receiver unexamined by the core (it is meaningful to the DCEP layer above
// this module, which always treats its own chunks as reliable regardless of
// stream policy — spec.md §4.7).
type payloadProtocolIdentifier uint32

const (
	ppidDCEP         payloadProtocolIdentifier = 50
	ppidString       payloadProtocolIdentifier = 51
	ppidBinary       payloadProtocolIdentifier = 53
	ppidStringEmpty  payloadProtocolIdentifier = 56
	ppidBinaryEmpty  payloadProtocolIdentifier = 57
)

func (p payloadProtocolIdentifier) String() string {
	switch p {
	case ppidDCEP:
		return "WebRTC DCEP"
	case ppidString:
		return "WebRTC String"
	case ppidBinary:
		return "WebRTC Binary"
	case ppidStringEmpty:
		return "WebRTC String (Empty)"
	case ppidBinaryEmpty:
		return "WebRTC Binary (Empty)"
	default:
		return fmt.Sprintf("unknown PPID: %d", uint32(p))
	}
}

const (
	dataChunkEndingFragmentBit   = 1 << 0
	dataChunkBeginningFragmentBit = 1 << 1
	dataChunkUnorderedBit        = 1 << 2
	dataChunkImmediateSackBit    = 1 << 3
)

// chunkPayloadData is the DATA chunk (type 0) plus the bookkeeping fields
// the association/queues need that never go on the wire.
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |   Type = 0    | Reserved|U|B|E|    Length                     |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                              TSN                              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |      Stream Identifier S      |   Stream Sequence Number n    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  Payload Protocol Identifier                  |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         User Data                              |
type chunkPayloadData struct {
	chunkHeader

	unordered        bool
	beginningFragment bool
	endingFragment   bool
	immediateSack    bool

	tsn                  uint32
	streamIdentifier     uint16
	streamSequenceNumber uint16
	payloadType          payloadProtocolIdentifier
	userData             []byte

	// Bookkeeping, never marshaled.
	acked         bool
	retransmit    bool
	missIndicator uint32
	nSent         uint32 // number of times we've sent this chunk
	since         time.Time
	abandoned     bool
	allInflight   bool // true once every fragment of this message has been sent at least once
}

func (p *chunkPayloadData) unmarshal(raw []byte) error {
	if err := p.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if p.typ != ctPayloadData {
		return errChunkTypeUnhandled
	}
	if len(p.chunkHeader.raw) < payloadDataHeaderSize {
		return errChunkTooShort
	}

	p.immediateSack = p.flags&dataChunkImmediateSackBit != 0
	p.unordered = p.flags&dataChunkUnorderedBit != 0
	p.beginningFragment = p.flags&dataChunkBeginningFragmentBit != 0
	p.endingFragment = p.flags&dataChunkEndingFragmentBit != 0

	p.tsn = binary.BigEndian.Uint32(p.raw[0:])
	p.streamIdentifier = binary.BigEndian.Uint16(p.raw[4:])
	p.streamSequenceNumber = binary.BigEndian.Uint16(p.raw[6:])
	p.payloadType = payloadProtocolIdentifier(binary.BigEndian.Uint32(p.raw[8:]))
	p.userData = p.raw[payloadDataHeaderSize:]

	return nil
}

func (p *chunkPayloadData) marshal() ([]byte, error) {
	raw := make([]byte, payloadDataHeaderSize+len(p.userData))

	binary.BigEndian.PutUint32(raw[0:], p.tsn)
	binary.BigEndian.PutUint16(raw[4:], p.streamIdentifier)
	binary.BigEndian.PutUint16(raw[6:], p.streamSequenceNumber)
	binary.BigEndian.PutUint32(raw[8:], uint32(p.payloadType))
	copy(raw[payloadDataHeaderSize:], p.userData)

	flags := uint8(0)
	if p.endingFragment {
		flags |= dataChunkEndingFragmentBit
	}
	if p.beginningFragment {
		flags |= dataChunkBeginningFragmentBit
	}
	if p.unordered {
		flags |= dataChunkUnorderedBit
	}
	if p.immediateSack {
		flags |= dataChunkImmediateSackBit
	}

	p.chunkHeader.flags = flags
	p.chunkHeader.typ = ctPayloadData
	p.chunkHeader.raw = raw
	return p.chunkHeader.marshal()
}

func (p *chunkPayloadData) check() (bool, error) {
	return false, nil
}

// dataChunkHeaderSize is a DATA chunk's on-wire overhead (chunk header plus
// TSN/stream/SSN/PPID fields), matching spec.md's DATA_CHUNK_HEADER_SIZE=16.
const dataChunkHeaderSize = chunkHeaderSize + payloadDataHeaderSize

func (p *chunkPayloadData) length() int {
	return dataChunkHeaderSize + len(p.userData)
}
