package sctp

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// packet is one SCTP packet: a 12-byte common header followed by one or
// more chunks. At most one packet travels per carrier datagram (§6).
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |     Source Port Number        |     Destination Port Number   |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                      Verification Tag                         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                           Checksum                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type packet struct {
	sourcePort      uint16
	destinationPort uint16
	verificationTag uint32
	chunks          []chunk
}

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func (p *packet) unmarshal(raw []byte) error {
	if len(raw) < commonHeaderSize {
		return errors.Wrapf(errPacketRawTooSmall, "raw only %d bytes, %d is the minimum length for a SCTP packet", len(raw), commonHeaderSize)
	}

	p.sourcePort = binary.BigEndian.Uint16(raw[0:])
	p.destinationPort = binary.BigEndian.Uint16(raw[2:])
	p.verificationTag = binary.BigEndian.Uint32(raw[4:])

	theirChecksum := binary.LittleEndian.Uint32(raw[commonHeaderChecksumOffset:])
	ourChecksum := generatePacketChecksum(raw)
	if theirChecksum != ourChecksum {
		return errors.Wrapf(errChecksumMismatch, "theirs %d ours %d", theirChecksum, ourChecksum)
	}

	offset := commonHeaderSize
	for offset != len(raw) {
		if offset+chunkHeaderSize > len(raw) {
			return errors.Wrapf(errParseSCTPChunkNotEnoughData, "offset %d remaining %d", offset, len(raw)-offset)
		}

		c, err := buildChunk(chunkType(raw[offset]))
		if err != nil {
			return err
		}
		if err := c.unmarshal(raw[offset:]); err != nil {
			return err
		}
		p.chunks = append(p.chunks, c)

		advance := chunkHeaderSize + c.valueLength()
		offset += advance + getPadding(advance)
	}
	return nil
}

func buildChunk(t chunkType) (chunk, error) {
	switch t {
	case ctInit:
		return &chunkInit{}, nil
	case ctInitAck:
		return &chunkInitAck{}, nil
	case ctSack:
		return &chunkSelectiveAck{}, nil
	case ctHeartbeat:
		return &chunkHeartbeat{}, nil
	case ctHeartbeatAck:
		return &chunkHeartbeatAck{}, nil
	case ctAbort:
		return &chunkAbort{}, nil
	case ctShutdown:
		return &chunkShutdown{}, nil
	case ctShutdownAck:
		return &chunkShutdownAck{}, nil
	case ctError:
		return &chunkError{}, nil
	case ctCookieEcho:
		return &chunkCookieEcho{}, nil
	case ctCookieAck:
		return &chunkCookieAck{}, nil
	case ctShutdownComplete:
		return &chunkShutdownComplete{}, nil
	case ctReconfig:
		return &chunkReconfig{}, nil
	case ctForwardTSN:
		return &chunkForwardTSN{}, nil
	case ctPayloadData:
		return &chunkPayloadData{}, nil
	default:
		return nil, errors.Wrapf(errChunkTypeUnhandled, "%s", t)
	}
}

func (p *packet) marshal() ([]byte, error) {
	raw := make([]byte, commonHeaderSize)

	binary.BigEndian.PutUint16(raw[0:], p.sourcePort)
	binary.BigEndian.PutUint16(raw[2:], p.destinationPort)
	binary.BigEndian.PutUint32(raw[4:], p.verificationTag)

	for _, c := range p.chunks {
		chunkRaw, err := c.marshal()
		if err != nil {
			return nil, err
		}
		raw = append(raw, chunkRaw...)
		if pad := getPadding(len(chunkRaw)); pad > 0 {
			raw = append(raw, make([]byte, pad)...)
		}
	}

	// Checksum bytes are big-endian on the wire; writing with LittleEndian
	// here stops PutUint32 from re-flipping an already-computed big-endian
	// CRC32C value (matches the teacher's packet.go convention).
	binary.LittleEndian.PutUint32(raw[commonHeaderChecksumOffset:], generatePacketChecksum(raw))
	return raw, nil
}

func generatePacketChecksum(raw []byte) uint32 {
	headerCopy := make([]byte, commonHeaderSize)
	copy(headerCopy, raw[:commonHeaderSize])
	for i := commonHeaderChecksumOffset; i < commonHeaderSize; i++ {
		headerCopy[i] = 0
	}

	crc := crc32.Checksum(headerCopy, castagnoliTable)
	if len(raw) > commonHeaderSize {
		crc = crc32.Update(crc, castagnoliTable, raw[commonHeaderSize:])
	}
	return crc
}
