package sctp

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// paramType is the Parameter Type field of an SCTP TLV parameter.
// https://tools.ietf.org/html/rfc4960#section-3.2.1
type paramType uint16

const (
	paramTypeStateCookie        paramType = 7
	paramTypeSupportedExt       paramType = 0x8008
	paramTypeOutSSNResetReq     paramType = 13 // RFC 6525 Outgoing SSN Reset Request
	paramTypeReconfigResp       paramType = 16 // RFC 6525 Re-configuration Response
	paramTypeForwardTSNSupp     paramType = 0xC000
)

func (p paramType) String() string {
	switch p {
	case paramTypeStateCookie:
		return "State Cookie"
	case paramTypeSupportedExt:
		return "Supported Extensions"
	case paramTypeOutSSNResetReq:
		return "Outgoing SSN Reset Request"
	case paramTypeReconfigResp:
		return "Re-configuration Response"
	case paramTypeForwardTSNSupp:
		return "Forward TSN Supported"
	default:
		return fmt.Sprintf("unknown param type: %d", uint16(p))
	}
}

// param is the minimal interface parameters need: length-awareness for TLV
// framing. Marshal/unmarshal are concrete methods on each type rather than
// part of this interface so callers that already know the concrete type can
// skip a type assertion.
type param interface {
	length() int
}

// paramHeader is the 4-byte TLV header shared by every INIT/INIT-ACK
// parameter.
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          Parameter Type       |       Parameter Length        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type paramHeader struct {
	typ   paramType
	raw   []byte
}

const paramHeaderLength = 4

func (p *paramHeader) unmarshal(raw []byte) error {
	if len(raw) < paramHeaderLength {
		return errors.Wrapf(errParamHeaderTooShort, "have %d need %d", len(raw), paramHeaderLength)
	}
	p.typ = paramType(binary.BigEndian.Uint16(raw[0:]))
	paramLengthPlusHeader := binary.BigEndian.Uint16(raw[2:])
	valueLength := int(paramLengthPlusHeader) - paramHeaderLength
	if valueLength < 0 || paramHeaderLength+valueLength > len(raw) {
		return errors.Wrapf(errParamHeaderTooShort, "declared length %d exceeds available %d", paramLengthPlusHeader, len(raw))
	}
	p.raw = raw[paramHeaderLength : paramHeaderLength+valueLength]
	return nil
}

func (p *paramHeader) marshal() []byte {
	raw := make([]byte, paramHeaderLength+len(p.raw))
	binary.BigEndian.PutUint16(raw[0:], uint16(p.typ))
	binary.BigEndian.PutUint16(raw[2:], uint16(len(p.raw)+paramHeaderLength))
	copy(raw[paramHeaderLength:], p.raw)
	return raw
}

func (p *paramHeader) length() int {
	return paramHeaderLength + len(p.raw)
}

// buildParam parses one TLV parameter whose type is recognized; unrecognized
// types are skipped by the caller (initChunk.unmarshalBody) rather than erroring, per
// RFC 4960 §3.2.1 handling rule 00 (unless the high bit requests otherwise,
// which this module does not need for INIT/INIT-ACK).
func buildParam(raw []byte) (param, error) {
	var h paramHeader
	if err := h.unmarshal(raw); err != nil {
		return nil, err
	}

	switch h.typ {
	case paramTypeStateCookie:
		return &paramStateCookie{paramHeader: h, cookie: h.raw}, nil
	case paramTypeSupportedExt:
		p := &paramSupportedExtensions{paramHeader: h}
		p.chunkTypes = append(p.chunkTypes, h.raw...)
		return p, nil
	case paramTypeOutSSNResetReq:
		return unmarshalOutgoingResetRequest(h)
	case paramTypeReconfigResp:
		return unmarshalReconfigResponse(h)
	case paramTypeForwardTSNSupp:
		return &paramForwardTSNSupported{paramHeader: h}, nil
	default:
		return nil, errors.Wrapf(errParamTypeUnhandled, "%s", h.typ)
	}
}

func getParamPadding(length uint16, multiple uint16) uint16 {
	return (multiple - (length % multiple)) % multiple
}
