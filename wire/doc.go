// Package wire implements the byte-level per-friend sub-protocol that rides
// inside every packet the transport delivers: a one-byte packet ID
// followed by a class-specific payload. Encoding and decoding live here so
// that dispatch and messenger never touch raw bytes directly.
//
// All multi-byte integers are big-endian, except the 4-byte nospam inside
// a friend address, which is opaque bytes copied verbatim.
package wire
