package sctp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// paramOutgoingResetRequest is RFC 6525's Outgoing SSN Reset Request
// Parameter: a peer asking us to stop delivering further data on the listed
// streams once our reassembly has caught up to senderLastTSN.
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |       Parameter Type = 13    |      Parameter Length         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          Re-configuration Request Sequence Number            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          Re-configuration Response Sequence Number           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                Sender's Last Assigned TSN                    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |    Stream Number 1 (optional)  |    Stream Number 2 (optional)|
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// /                            ......                            /
type paramOutgoingResetRequest struct {
	paramHeader
	reconfigRequestSequenceNumber  uint32
	reconfigResponseSequenceNumber uint32
	senderLastTSN                  uint32
	streamIdentifiers              []uint16
}

const outgoingResetRequestFixedLength = 12

func unmarshalOutgoingResetRequest(h paramHeader) (*paramOutgoingResetRequest, error) {
	if len(h.raw) < outgoingResetRequestFixedLength {
		return nil, errors.Wrapf(errParamHeaderTooShort, "outgoing reset request needs %d bytes, got %d", outgoingResetRequestFixedLength, len(h.raw))
	}
	p := &paramOutgoingResetRequest{paramHeader: h}
	p.reconfigRequestSequenceNumber = binary.BigEndian.Uint32(h.raw[0:])
	p.reconfigResponseSequenceNumber = binary.BigEndian.Uint32(h.raw[4:])
	p.senderLastTSN = binary.BigEndian.Uint32(h.raw[8:])
	for i := outgoingResetRequestFixedLength; i+2 <= len(h.raw); i += 2 {
		p.streamIdentifiers = append(p.streamIdentifiers, binary.BigEndian.Uint16(h.raw[i:]))
	}
	return p, nil
}

func (p *paramOutgoingResetRequest) marshal() []byte {
	raw := make([]byte, outgoingResetRequestFixedLength+2*len(p.streamIdentifiers))
	binary.BigEndian.PutUint32(raw[0:], p.reconfigRequestSequenceNumber)
	binary.BigEndian.PutUint32(raw[4:], p.reconfigResponseSequenceNumber)
	binary.BigEndian.PutUint32(raw[8:], p.senderLastTSN)
	for i, id := range p.streamIdentifiers {
		binary.BigEndian.PutUint16(raw[outgoingResetRequestFixedLength+2*i:], id)
	}
	p.paramHeader.typ = paramTypeOutSSNResetReq
	p.paramHeader.raw = raw
	return p.paramHeader.marshal()
}

// reconfigResult mirrors RFC 6525 §4.3's Result field of the Re-configuration
// Response Parameter.
type reconfigResult uint32

const (
	reconfigResultSuccessNOP       reconfigResult = 0
	reconfigResultSuccessPerformed reconfigResult = 1
	reconfigResultDenied           reconfigResult = 2
	reconfigResultErrorWrongSSN    reconfigResult = 3
	reconfigResultErrorRequestAlreadyInProgress reconfigResult = 4
	reconfigResultErrorBadSequenceNumber        reconfigResult = 5
	reconfigResultInProgress       reconfigResult = 6
)

// paramReconfigResponse is RFC 6525's Re-configuration Response Parameter,
// the reply to one of our own outgoing-reset-requests.
type paramReconfigResponse struct {
	paramHeader
	reconfigResponseSequenceNumber uint32
	result                         reconfigResult
}

const reconfigResponseFixedLength = 8

func unmarshalReconfigResponse(h paramHeader) (*paramReconfigResponse, error) {
	if len(h.raw) < reconfigResponseFixedLength {
		return nil, errors.Wrapf(errParamHeaderTooShort, "reconfig response needs %d bytes, got %d", reconfigResponseFixedLength, len(h.raw))
	}
	p := &paramReconfigResponse{paramHeader: h}
	p.reconfigResponseSequenceNumber = binary.BigEndian.Uint32(h.raw[0:])
	p.result = reconfigResult(binary.BigEndian.Uint32(h.raw[4:]))
	return p, nil
}

func (p *paramReconfigResponse) marshal() []byte {
	raw := make([]byte, reconfigResponseFixedLength)
	binary.BigEndian.PutUint32(raw[0:], p.reconfigResponseSequenceNumber)
	binary.BigEndian.PutUint32(raw[4:], uint32(p.result))
	p.paramHeader.typ = paramTypeReconfigResp
	p.paramHeader.raw = raw
	return p.paramHeader.marshal()
}
