package sctp

// chunkInitAck is the INIT-ACK chunk (type 2), the server's reply to INIT.
// It carries the state cookie the client must echo back unmodified.
type chunkInitAck struct {
	initChunk
}

func (c *chunkInitAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctInitAck {
		return errChunkTypeUnhandled
	}
	return c.unmarshalBody(c.chunkHeader.raw)
}

func (c *chunkInitAck) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctInitAck
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = c.marshalBody()
	return c.chunkHeader.marshal()
}

func (c *chunkInitAck) check() (bool, error) {
	return false, nil
}
