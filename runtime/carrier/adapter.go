// Package carrier defines the interface boundary between the streaming
// engine and whatever carries media to and from the telephony side. The
// engine consumes and produces raw bytes only; everything carrier-specific
// (signaling, webhook verification, account/number management) lives on
// the other side of this interface.
package carrier

// Adapter is implemented by the carrier-facing collaborator for one call.
// The engine never holds a reference to carrier transport details beyond
// this interface.
type Adapter interface {
	// EgressSink is invoked by the engine once per playback tick with one
	// companded narrow-band payload ready for the carrier leg.
	EgressSink(frameBytes []byte) error

	// OnTeardown is invoked by the engine when the session reaches a
	// terminal status, so the adapter can release its carrier-side leg.
	// reason is empty for a normal stop().
	OnTeardown(sessionID string, reason string)
}

// IngressSource is implemented by whatever feeds carrier media frames into
// the engine. It is a plain function type rather than an interface because
// a session's ingress is a single inbound callback, not a richer contract.
type IngressSource func(sessionID string, frameBytes []byte)
