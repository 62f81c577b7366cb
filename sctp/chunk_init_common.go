package sctp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// initChunk is the common fixed body shared by INIT and INIT-ACK.
//
//  0                   1                   2                   3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         Initiate Tag                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           Advertised Receiver Window Credit (a_rwnd)          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Number of Outbound Streams   |  Number of Inbound Streams    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                          Initial TSN                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  Optional/Variable Parameters                 |
type initChunk struct {
	chunkHeader
	initiateTag                    uint32
	advertisedReceiverWindowCredit uint32
	numOutboundStreams              uint16
	numInboundStreams                uint16
	initialTSN                      uint32
	params                          []param

	initAck bool
}

const initChunkFixedLength = 16

func (i *initChunk) unmarshalBody(raw []byte) error {
	if len(raw) < initChunkFixedLength {
		return errors.Wrapf(errChunkTooShort, "INIT body needs %d bytes, got %d", initChunkFixedLength, len(raw))
	}
	i.initiateTag = binary.BigEndian.Uint32(raw[0:])
	i.advertisedReceiverWindowCredit = binary.BigEndian.Uint32(raw[4:])
	i.numOutboundStreams = binary.BigEndian.Uint16(raw[8:])
	i.numInboundStreams = binary.BigEndian.Uint16(raw[10:])
	i.initialTSN = binary.BigEndian.Uint32(raw[12:])

	offset := initChunkFixedLength
	for offset+paramHeaderLength <= len(raw) {
		p, err := buildParam(raw[offset:])
		if err != nil {
			// Unrecognized parameters are ignored per RFC 4960 rule 00.
			var h paramHeader
			if hErr := h.unmarshal(raw[offset:]); hErr != nil {
				return hErr
			}
			offset += h.length() + int(getParamPadding(uint16(h.length()), paddingMultiple))
			continue
		}
		i.params = append(i.params, p)
		offset += p.length() + int(getParamPadding(uint16(p.length()), paddingMultiple))
	}
	return nil
}

func (i *initChunk) marshalBody() []byte {
	raw := make([]byte, initChunkFixedLength)
	binary.BigEndian.PutUint32(raw[0:], i.initiateTag)
	binary.BigEndian.PutUint32(raw[4:], i.advertisedReceiverWindowCredit)
	binary.BigEndian.PutUint16(raw[8:], i.numOutboundStreams)
	binary.BigEndian.PutUint16(raw[10:], i.numInboundStreams)
	binary.BigEndian.PutUint32(raw[12:], i.initialTSN)

	for _, p := range i.params {
		var pb []byte
		switch v := p.(type) {
		case *paramStateCookie:
			pb = v.marshal()
		case *paramSupportedExtensions:
			pb = v.marshal()
		case *paramForwardTSNSupported:
			pb = v.marshal()
		}
		raw = append(raw, pb...)
		if pad := getPadding(len(pb)); pad > 0 {
			raw = append(raw, make([]byte, pad)...)
		}
	}
	return raw
}

// supportsExtension reports whether the parsed parameters advertise support
// for chunk type t via paramSupportedExtensions.
func (i *initChunk) supportsExtension(t chunkType) bool {
	for _, p := range i.params {
		if se, ok := p.(*paramSupportedExtensions); ok && se.supports(t) {
			return true
		}
	}
	return false
}

func (i *initChunk) stateCookie() []byte {
	for _, p := range i.params {
		if sc, ok := p.(*paramStateCookie); ok {
			return sc.cookie
		}
	}
	return nil
}
