package sctp

// paramSupportedExtensions lists the chunk types this association wants to
// use beyond base RFC 4960: RECONFIG (RFC 6525) and FORWARD-TSN (RFC 3758).
// Presence of FORWARD-TSN in the peer's INIT/INIT-ACK list is what sets
// Association.useForwardTSN; stream reconfiguration is not gated on the
// peer's list.
type paramSupportedExtensions struct {
	paramHeader
	chunkTypes []byte
}

func newParamSupportedExtensions() *paramSupportedExtensions {
	p := &paramSupportedExtensions{chunkTypes: []byte{uint8(ctReconfig), uint8(ctForwardTSN)}}
	p.paramHeader = paramHeader{typ: paramTypeSupportedExt, raw: p.chunkTypes}
	return p
}

func (s *paramSupportedExtensions) marshal() []byte {
	s.paramHeader.raw = s.chunkTypes
	return s.paramHeader.marshal()
}

func (s *paramSupportedExtensions) supports(t chunkType) bool {
	for _, c := range s.chunkTypes {
		if chunkType(c) == t {
			return true
		}
	}
	return false
}

// paramForwardTSNSupported is the zero-length marker parameter some stacks
// send alongside paramSupportedExtensions. It is parsed and marshaled, but
// supportsExtension only consults paramSupportedExtensions, so this marker
// alone does not set useForwardTSN.
type paramForwardTSNSupported struct {
	paramHeader
}

func newParamForwardTSNSupported() *paramForwardTSNSupported {
	p := &paramForwardTSNSupported{}
	p.paramHeader = paramHeader{typ: paramTypeForwardTSNSupp}
	return p
}

func (f *paramForwardTSNSupported) marshal() []byte {
	f.paramHeader.raw = nil
	return f.paramHeader.marshal()
}
