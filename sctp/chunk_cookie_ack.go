package sctp

// chunkCookieAck (type 11) is the server's final handshake message: it has
// validated the echoed cookie and the association is now Established.
type chunkCookieAck struct {
	chunkHeader
}

func (c *chunkCookieAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctCookieAck {
		return errChunkTypeUnhandled
	}
	return nil
}

func (c *chunkCookieAck) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctCookieAck
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = nil
	return c.chunkHeader.marshal()
}

func (c *chunkCookieAck) check() (bool, error) {
	return false, nil
}
