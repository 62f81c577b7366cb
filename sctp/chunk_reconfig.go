package sctp

// chunkReconfig is the RECONFIG chunk (type 130, RFC 6525). It carries one
// or two re-configuration parameters; this module only emits/consumes
// paramOutgoingResetRequest and paramReconfigResponse (spec.md §4.6).
type chunkReconfig struct {
	chunkHeader
	paramA param
	paramB param
}

func (c *chunkReconfig) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != ctReconfig {
		return errChunkTypeUnhandled
	}

	offset := 0
	first := true
	for offset+paramHeaderLength <= len(c.chunkHeader.raw) {
		p, err := buildParam(c.chunkHeader.raw[offset:])
		if err != nil {
			return err
		}
		if first {
			c.paramA = p
			first = false
		} else {
			c.paramB = p
		}
		offset += p.length() + int(getParamPadding(uint16(p.length()), paddingMultiple))
	}
	return nil
}

func (c *chunkReconfig) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctReconfig
	c.chunkHeader.flags = 0

	var raw []byte
	for _, p := range []param{c.paramA, c.paramB} {
		if p == nil {
			continue
		}
		var pb []byte
		switch v := p.(type) {
		case *paramOutgoingResetRequest:
			pb = v.marshal()
		case *paramReconfigResponse:
			pb = v.marshal()
		}
		raw = append(raw, pb...)
		if pad := getPadding(len(pb)); pad > 0 {
			raw = append(raw, make([]byte, pad)...)
		}
	}
	c.chunkHeader.raw = raw
	return c.chunkHeader.marshal()
}

func (c *chunkReconfig) check() (bool, error) {
	return false, nil
}
