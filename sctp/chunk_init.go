package sctp

// chunkInit is the INIT chunk (type 1), the first message of the four-way
// handshake. Its verification tag in the packet header must be 0 (it is
// out-of-the-blue, no association exists yet to check a tag against).
type chunkInit struct {
	initChunk
}

func (c *chunkInit) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctInit {
		return errChunkTypeUnhandled
	}
	return c.unmarshalBody(c.chunkHeader.raw)
}

func (c *chunkInit) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctInit
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = c.marshalBody()
	return c.chunkHeader.marshal()
}

func (c *chunkInit) check() (bool, error) {
	return false, nil
}
