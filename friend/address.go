package friend

import (
	"encoding/binary"
)

// AddressSize is the wire size of a public friend address: public_key(32)
// || nospam(4) || checksum(2).
const AddressSize = 32 + 4 + 2

// Address is the 38-byte public identifier a user publishes so others can
// add them as a friend. It is used only to bootstrap AddFriend; nothing
// else in this module ever needs it again afterward.
type Address struct {
	PublicKey [32]byte
	Nospam    [4]byte
}

// checksum is the byte-pairwise XOR of the preceding 36 bytes, interpreted
// as little-endian uint16, per spec.md §3.
func checksum(publicKey [32]byte, nospam [4]byte) [2]byte {
	var buf [36]byte
	copy(buf[:32], publicKey[:])
	copy(buf[32:], nospam[:])

	var sum [2]byte
	for i := 0; i < len(buf); i += 2 {
		sum[0] ^= buf[i]
		sum[1] ^= buf[i+1]
	}
	return sum
}

// Bytes serializes the address to its 38-byte wire form.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressSize)
	copy(out[0:32], a.PublicKey[:])
	copy(out[32:36], a.Nospam[:])
	sum := checksum(a.PublicKey, a.Nospam)
	out[36] = sum[0]
	out[37] = sum[1]
	return out
}

// ParseAddress decodes and validates a 38-byte address, including its
// checksum. Returns ErrTooLong if the length is wrong, ErrBadChecksum if
// the trailing checksum doesn't match.
func ParseAddress(raw []byte) (Address, error) {
	if len(raw) != AddressSize {
		return Address{}, ErrTooLong
	}
	var a Address
	copy(a.PublicKey[:], raw[0:32])
	copy(a.Nospam[:], raw[32:36])

	want := checksum(a.PublicKey, a.Nospam)
	if raw[36] != want[0] || raw[37] != want[1] {
		return Address{}, ErrBadChecksum
	}
	return a, nil
}

// LittleEndianNospamUint32 exposes Nospam as a little-endian uint32, used
// only for display/config purposes; the wire format always treats nospam
// as opaque bytes, never as an integer to be byte-swapped.
func LittleEndianNospamUint32(nospam [4]byte) uint32 {
	return binary.LittleEndian.Uint32(nospam[:])
}
