package sctp

import "encoding/binary"

// chunkHeartbeat (type 4) and chunkHeartbeatAck (type 5) implement the
// RFC 4960 §8.3 heartbeat round trip. Single-homed and with no path timer of
// its own, this module uses them only when Association.Ping is called
// explicitly (SPEC_FULL.md supplemented feature 2) to refresh srtt while the
// link is otherwise idle.
type chunkHeartbeat struct {
	chunkHeader
	info []byte
}

const heartbeatInfoParamType = 1

func (c *chunkHeartbeat) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctHeartbeat {
		return errChunkTypeUnhandled
	}
	var h paramHeader
	if err := h.unmarshal(c.chunkHeader.raw); err == nil {
		c.info = h.raw
	}
	return nil
}

func (c *chunkHeartbeat) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctHeartbeat
	c.chunkHeader.flags = 0
	raw := make([]byte, 4+len(c.info))
	binary.BigEndian.PutUint16(raw[0:], heartbeatInfoParamType)
	binary.BigEndian.PutUint16(raw[2:], uint16(4+len(c.info)))
	copy(raw[4:], c.info)
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkHeartbeat) check() (bool, error) {
	return false, nil
}

type chunkHeartbeatAck struct {
	chunkHeader
	info []byte
}

func (c *chunkHeartbeatAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctHeartbeatAck {
		return errChunkTypeUnhandled
	}
	var h paramHeader
	if err := h.unmarshal(c.chunkHeader.raw); err == nil {
		c.info = h.raw
	}
	return nil
}

func (c *chunkHeartbeatAck) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctHeartbeatAck
	c.chunkHeader.flags = 0
	raw := make([]byte, 4+len(c.info))
	binary.BigEndian.PutUint16(raw[0:], heartbeatInfoParamType)
	binary.BigEndian.PutUint16(raw[2:], uint16(4+len(c.info)))
	copy(raw[4:], c.info)
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkHeartbeatAck) check() (bool, error) {
	return false, nil
}
