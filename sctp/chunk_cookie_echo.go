package sctp

// chunkCookieEcho (type 10) echoes the state cookie handed out in INIT-ACK,
// proving the client's source address round-trips without the server
// needing to hold per-association state before the echo arrives.
type chunkCookieEcho struct {
	chunkHeader
	cookie []byte
}

func (c *chunkCookieEcho) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctCookieEcho {
		return errChunkTypeUnhandled
	}
	c.cookie = c.chunkHeader.raw
	return nil
}

func (c *chunkCookieEcho) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctCookieEcho
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = c.cookie
	return c.chunkHeader.marshal()
}

func (c *chunkCookieEcho) check() (bool, error) {
	return false, nil
}
