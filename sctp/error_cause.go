package sctp

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// errorCauseCode identifies the cause of an ERROR or ABORT chunk.
// https://tools.ietf.org/html/rfc4960#section-3.3.10
type errorCauseCode uint16

const (
	errorCauseUnrecognizedChunkType errorCauseCode = 6
)

func (e errorCauseCode) String() string {
	switch e {
	case errorCauseUnrecognizedChunkType:
		return "Unrecognized Chunk Type"
	default:
		return fmt.Sprintf("unknown error cause: %d", uint16(e))
	}
}

// errorCause is the TLV payload of an ERROR/ABORT chunk.
type errorCause struct {
	code  errorCauseCode
	value []byte
}

const errorCauseHeaderLength = 4

func (e *errorCause) unmarshal(raw []byte) error {
	if len(raw) < errorCauseHeaderLength {
		return errors.Wrap(errErrorCauseUnhandled, "error cause header too short")
	}
	e.code = errorCauseCode(binary.BigEndian.Uint16(raw[0:]))
	length := binary.BigEndian.Uint16(raw[2:])
	valueLength := int(length) - errorCauseHeaderLength
	if valueLength < 0 || errorCauseHeaderLength+valueLength > len(raw) {
		return errors.Wrap(errErrorCauseUnhandled, "error cause length out of range")
	}
	e.value = raw[errorCauseHeaderLength : errorCauseHeaderLength+valueLength]
	return nil
}

func (e *errorCause) marshal() []byte {
	raw := make([]byte, errorCauseHeaderLength+len(e.value))
	binary.BigEndian.PutUint16(raw[0:], uint16(e.code))
	binary.BigEndian.PutUint16(raw[2:], uint16(len(e.value)+errorCauseHeaderLength))
	copy(raw[errorCauseHeaderLength:], e.value)
	return raw
}

func newUnrecognizedChunkTypeCause(offendingChunk []byte) *errorCause {
	return &errorCause{code: errorCauseUnrecognizedChunkType, value: offendingChunk}
}
