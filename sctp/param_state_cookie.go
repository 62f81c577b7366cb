package sctp

// paramStateCookie carries the server's opaque cookie from INIT-ACK to
// COOKIE-ECHO. This module treats the cookie as opaque bytes (no HMAC/crypto
// cookie scheme is specified by spec.md); it is stored and echoed back
// verbatim, and compared byte-for-byte against myCookie on the server side.
type paramStateCookie struct {
	paramHeader
	cookie []byte
}

func newParamStateCookie(cookie []byte) *paramStateCookie {
	p := &paramStateCookie{cookie: cookie}
	p.paramHeader = paramHeader{typ: paramTypeStateCookie, raw: cookie}
	return p
}

func (s *paramStateCookie) marshal() []byte {
	s.paramHeader.raw = s.cookie
	return s.paramHeader.marshal()
}
