package sctp

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// chunkType is the Chunk Type field of an SCTP chunk header.
// https://tools.ietf.org/html/rfc4960#section-3.2
type chunkType uint8

// Chunk type enums. RECONFIG and FORWARD-TSN are RFC 6525 / RFC 3758
// extensions negotiated via the supported-extensions INIT parameter.
const (
	ctPayloadData      chunkType = 0
	ctInit             chunkType = 1
	ctInitAck          chunkType = 2
	ctSack             chunkType = 3
	ctHeartbeat        chunkType = 4
	ctHeartbeatAck     chunkType = 5
	ctAbort            chunkType = 6
	ctShutdown         chunkType = 7
	ctShutdownAck      chunkType = 8
	ctError            chunkType = 9
	ctCookieEcho       chunkType = 10
	ctCookieAck        chunkType = 11
	ctCWR              chunkType = 13
	ctShutdownComplete chunkType = 14
	ctReconfig         chunkType = 130
	ctForwardTSN       chunkType = 192
)

func (c chunkType) String() string {
	switch c {
	case ctPayloadData:
		return "DATA"
	case ctInit:
		return "INIT"
	case ctInitAck:
		return "INIT-ACK"
	case ctSack:
		return "SACK"
	case ctHeartbeat:
		return "HEARTBEAT"
	case ctHeartbeatAck:
		return "HEARTBEAT-ACK"
	case ctAbort:
		return "ABORT"
	case ctShutdown:
		return "SHUTDOWN"
	case ctShutdownAck:
		return "SHUTDOWN-ACK"
	case ctError:
		return "ERROR"
	case ctCookieEcho:
		return "COOKIE-ECHO"
	case ctCookieAck:
		return "COOKIE-ACK"
	case ctCWR:
		return "CWR"
	case ctShutdownComplete:
		return "SHUTDOWN-COMPLETE"
	case ctReconfig:
		return "RECONFIG"
	case ctForwardTSN:
		return "FORWARD-TSN"
	default:
		return fmt.Sprintf("unknown chunk type: %d", uint8(c))
	}
}

// chunk is implemented by every chunk body. Unlike the codec-less param
// interface, chunks carry check for post-parse validation that surfaces
// per-chunk, not per-packet; every chunk type in this package currently
// returns (false, nil) from it.
type chunk interface {
	unmarshal(raw []byte) error
	marshal() ([]byte, error)
	check() (abort bool, err error)
	valueLength() int
}

// chunkHeader is embedded by every chunk body; it owns the wire framing
// (type, flags, length) and, after unmarshal, the raw value bytes the
// chunk-specific unmarshal further decodes.
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |   Chunk Type  | Chunk  Flags  |        Chunk Length           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type chunkHeader struct {
	typ   chunkType
	flags byte
	raw   []byte
}

func (c *chunkHeader) unmarshal(raw []byte) error {
	if len(raw) < chunkHeaderSize {
		return errors.Wrapf(errChunkTooShort, "raw only %d bytes, %d is the minimum length for a SCTP chunk", len(raw), chunkHeaderSize)
	}

	c.typ = chunkType(raw[0])
	c.flags = raw[1]
	length := binary.BigEndian.Uint16(raw[2:])
	if length < chunkHeaderSize {
		return errors.Wrapf(errChunkTooShort, "chunk length %d smaller than header", length)
	}

	valueLength := int(length) - chunkHeaderSize
	lengthAfterValue := len(raw) - (chunkHeaderSize + valueLength)
	if lengthAfterValue < 0 {
		return errors.Wrapf(errParseSCTPChunkNotEnoughData, "remain %d req %d", len(raw)-chunkHeaderSize, valueLength)
	} else if lengthAfterValue < paddingMultiple {
		// Length does not count padding; padding must be all zero and no
		// more than 3 bytes. Validate it so callers can trust raw[len:].
		for i := lengthAfterValue; i > 0; i-- {
			paddingOffset := chunkHeaderSize + valueLength + (i - 1)
			if raw[paddingOffset] != 0 {
				return errors.Wrapf(errChunkPaddingNonZero, "at offset %d", paddingOffset)
			}
		}
	}

	c.raw = raw[chunkHeaderSize : chunkHeaderSize+valueLength]
	return nil
}

func (c *chunkHeader) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize+len(c.raw))
	raw[0] = uint8(c.typ)
	raw[1] = c.flags
	binary.BigEndian.PutUint16(raw[2:], uint16(len(c.raw)+chunkHeaderSize))
	copy(raw[chunkHeaderSize:], c.raw)
	return raw, nil
}

func (c *chunkHeader) valueLength() int {
	return len(c.raw)
}
