package sctp

import "github.com/pkg/errors"

// Sentinel errors returned by the codecs and the association. Callers should
// compare with errors.Is; wire-decode failures wrap one of these with
// errors.Wrapf to add offsets/lengths without losing the sentinel.
var (
	errPacketRawTooSmall          = errors.New("raw is smaller than the minimum length for a SCTP packet")
	errParseSCTPChunkNotEnoughData = errors.New("unable to parse SCTP chunk, not enough data for complete header")
	errChecksumMismatch           = errors.New("checksum mismatch theirs vs ours")
	errInitChunkBundled           = errors.New("INIT chunk must not be bundled with any other chunk")
	errInitChunkVerifyTagNonZero  = errors.New("INIT chunk expects a verification tag of 0 on the packet when out-of-the-blue")
	errChunkTypeUnhandled         = errors.New("unhandled chunk type")
	errChunkTooShort              = errors.New("chunk too short")
	errChunkPaddingNonZero        = errors.New("chunk padding is non-zero")
	errParamTypeUnhandled         = errors.New("unhandled parameter type")
	errParamHeaderTooShort        = errors.New("parameter header too short")
	errErrorCauseUnhandled        = errors.New("unhandled error cause code")

	errStreamClosed                 = errors.New("stream closed")
	errOutboundPacketTooLarge       = errors.New("outbound packet larger than maximum message size")
	errAssociationNotEstablished    = errors.New("cannot send payload data, association is not established")
	errAssociationClosed            = errors.New("association closed")
	errAssociationClosedBeforeConn  = errors.New("association closed before connection was established")
	errHandshakeFailed              = errors.New("handshake failed")
	errSCTPPacketSourcePortZero     = errors.New("SCTP packet must not have a source port of 0")
	errSCTPPacketDestinationPortZero = errors.New("SCTP packet must not have a destination port of 0")
	errResetStreamBeforeEstablished = errors.New("cannot reset stream, association is not established")
	errForwardTSNNotNegotiated      = errors.New("FORWARD-TSN received but not negotiated with peer")
	errPacketVerificationTagMismatch = errors.New("packet verification tag does not match this association")
	errCookieMismatch               = errors.New("state cookie does not match the one this association issued")
)
