package sctp

import "encoding/binary"

// chunkShutdown (type 7) begins the graceful shutdown handshake once the
// local inflight queue has drained (spec.md §4.1).
type chunkShutdown struct {
	chunkHeader
	cumulativeTSNAck uint32
}

func (c *chunkShutdown) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctShutdown {
		return errChunkTypeUnhandled
	}
	if len(c.chunkHeader.raw) < 4 {
		return errChunkTooShort
	}
	c.cumulativeTSNAck = binary.BigEndian.Uint32(c.chunkHeader.raw)
	return nil
}

func (c *chunkShutdown) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctShutdown
	c.chunkHeader.flags = 0
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, c.cumulativeTSNAck)
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkShutdown) check() (bool, error) {
	return false, nil
}

// chunkShutdownAck (type 8) replies to SHUTDOWN (or is sent after our own
// side finishes draining in response to a peer SHUTDOWN).
type chunkShutdownAck struct {
	chunkHeader
}

func (c *chunkShutdownAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctShutdownAck {
		return errChunkTypeUnhandled
	}
	return nil
}

func (c *chunkShutdownAck) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctShutdownAck
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = nil
	return c.chunkHeader.marshal()
}

func (c *chunkShutdownAck) check() (bool, error) {
	return false, nil
}

// chunkShutdownComplete (type 14) closes out the handshake; receipt or send
// of this chunk always transitions the association to Closed.
type chunkShutdownComplete struct {
	chunkHeader
}

func (c *chunkShutdownComplete) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctShutdownComplete {
		return errChunkTypeUnhandled
	}
	return nil
}

func (c *chunkShutdownComplete) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctShutdownComplete
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = nil
	return c.chunkHeader.marshal()
}

func (c *chunkShutdownComplete) check() (bool, error) {
	return false, nil
}
