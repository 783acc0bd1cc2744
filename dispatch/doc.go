// Package dispatch demultiplexes inbound per-friend packets by their
// leading wire.PacketID byte and applies them to the right friend/file/
// receipt state, firing application upcalls along the way.
//
// It is the one package allowed to depend on both wire (for framing and
// payload codecs) and friend/file/receipt (for the state the packets
// mutate) — every other package in this module sees at most one side of
// that boundary.
package dispatch
