package sctp

import (
	"net"

	"github.com/pion/logging"
)

// Carrier is the opaque, datagram-oriented duplex this association runs
// over (spec.md §6) — typically a DTLS data-channel transport, but anything
// satisfying net.Conn (e.g. net.Pipe() in tests) works, since at most one
// SCTP packet per Read is all the core assumes.
type Carrier interface {
	net.Conn
}

// Config configures a new Association. Only NetConn is required; the rest
// default per spec.md §6.
type Config struct {
	// NetConn is the carrier connection. Required.
	NetConn Carrier

	// LoggerFactory builds the LeveledLogger used throughout the
	// association. Defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory

	// MaxReceiveBufferSize bounds how much received data the association
	// buffers (out-of-order chunks plus every stream's reassembly queue)
	// before handleDataChunk starts dropping non-gap-filler chunks (spec.md
	// §7 ResourceExhausted). Default 1 MiB.
	MaxReceiveBufferSize uint32

	// MaxMessageSize bounds a single WriteSCTP call. Default 65536.
	MaxMessageSize uint32

	// Name is a caller-supplied identifier used only for logging; if empty
	// a random one is generated (spec.md §9: "any unique id works").
	Name string
}

const (
	defaultMaxReceiveBufferSize = 1024 * 1024
	defaultMaxMessageSize       = 65536
)
