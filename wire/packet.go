package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketID is the leading byte of every per-friend sub-protocol frame. The
// exact numeric values are an implementation choice; they only need to be
// fixed within one deployment, which this module satisfies by fixing them
// here.
type PacketID byte

const (
	PacketOnline PacketID = iota + 1
	PacketOffline
	PacketNickname
	PacketStatusMessage
	PacketUserStatus
	PacketTyping
	PacketMessage
	PacketAction // = PacketMessage + 1, per spec
	PacketInviteGroupchat
	PacketFileSendRequest
	PacketFileControl
	PacketFileData
	PacketMsi
)

// LossyRangeStart/End and LosslessRangeStart/End reserve an ID band for
// custom application channels (spec.md §4.2's LossyRange/LosslessRange).
// Everything in [LossyRangeStart, LossyRangeEnd] arrives over the
// transport's unreliable path; everything in [LosslessRangeStart,
// LosslessRangeEnd] arrives reliably.
const (
	LossyRangeStart    PacketID = 0xC0
	LossyRangeEnd      PacketID = 0xCF
	LosslessRangeStart PacketID = 0xD0
	LosslessRangeEnd   PacketID = 0xEF
)

// Size limits from spec.md §3/§4.2.
const (
	MaxNicknameLen      = 128
	MaxStatusMessageLen = 1007
	MaxMessageLen       = 1016
	MaxFileNameLen      = 255
	MaxFileDataChunk    = 1015
	MinMessageLen       = 1
	MinInviteLen        = 1
	MinMsiLen           = 1
)

var (
	ErrEmptyFrame       = errors.New("wire: empty frame")
	ErrPayloadTooLong   = errors.New("wire: payload too long")
	ErrPayloadTooShort  = errors.New("wire: payload too short")
	ErrPayloadEmpty     = errors.New("wire: payload must not be empty")
	ErrInvalidUTF8      = errors.New("wire: payload is not valid UTF-8")
	ErrWrongPacketClass = errors.New("wire: payload does not match expected packet class")
)

// Frame prefixes payload with its packet ID, producing the raw bytes the
// transport sends.
func Frame(id PacketID, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(id)
	copy(out[1:], payload)
	return out
}

// ParseFrame splits a raw inbound packet into its ID and payload.
func ParseFrame(raw []byte) (PacketID, []byte, error) {
	if len(raw) < 1 {
		return 0, nil, ErrEmptyFrame
	}
	return PacketID(raw[0]), raw[1:], nil
}

func validText(s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(s), max)
	}
	return nil
}

// MarshalNickname encodes a 0..128 byte UTF-8 nickname payload.
func MarshalNickname(name string) ([]byte, error) {
	if err := validText(name, MaxNicknameLen); err != nil {
		return nil, err
	}
	return []byte(name), nil
}

// UnmarshalNickname decodes a nickname payload, rejecting anything over the
// limit. Malformed UTF-8 is accepted bytewise; the caller NUL-terminates a
// local copy before any upcall per spec.md §4.2.
func UnmarshalNickname(payload []byte) (string, error) {
	if len(payload) > MaxNicknameLen {
		return "", fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(payload), MaxNicknameLen)
	}
	return string(payload), nil
}

// MarshalStatusMessage encodes a 0..1007 byte UTF-8 status message payload.
func MarshalStatusMessage(msg string) ([]byte, error) {
	if err := validText(msg, MaxStatusMessageLen); err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

// UnmarshalStatusMessage decodes a status message payload.
func UnmarshalStatusMessage(payload []byte) (string, error) {
	if len(payload) > MaxStatusMessageLen {
		return "", fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(payload), MaxStatusMessageLen)
	}
	return string(payload), nil
}

// MarshalUserStatus encodes the 1-byte user-status enum.
func MarshalUserStatus(status uint8) []byte {
	return []byte{status}
}

// UnmarshalUserStatus decodes the 1-byte user-status enum.
func UnmarshalUserStatus(payload []byte) (uint8, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("%w: user status must be exactly 1 byte, got %d", ErrWrongPacketClass, len(payload))
	}
	return payload[0], nil
}

// MarshalTyping encodes the 1-byte typing boolean.
func MarshalTyping(typing bool) []byte {
	if typing {
		return []byte{1}
	}
	return []byte{0}
}

// UnmarshalTyping decodes the 1-byte typing boolean.
func UnmarshalTyping(payload []byte) (bool, error) {
	if len(payload) != 1 {
		return false, fmt.Errorf("%w: typing must be exactly 1 byte, got %d", ErrWrongPacketClass, len(payload))
	}
	return payload[0] != 0, nil
}

// MarshalText encodes a 1..1016 byte UTF-8 message or action payload. The
// caller picks PacketMessage or PacketAction as the frame ID.
func MarshalText(text string) ([]byte, error) {
	if len(text) < MinMessageLen {
		return nil, ErrPayloadEmpty
	}
	if len(text) > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(text), MaxMessageLen)
	}
	return []byte(text), nil
}

// UnmarshalText decodes a message/action payload.
func UnmarshalText(payload []byte) (string, error) {
	if len(payload) < MinMessageLen {
		return "", ErrPayloadEmpty
	}
	if len(payload) > MaxMessageLen {
		return "", fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(payload), MaxMessageLen)
	}
	return string(payload), nil
}

// FileSendRequest is the decoded payload of a PacketFileSendRequest frame.
type FileSendRequest struct {
	Slot     byte
	FileType uint32
	Size     uint64
	FileID   [32]byte
	Name     string
}

// MarshalFileSendRequest encodes slot(1) type(4BE) size(8BE) file_id(32)
// name(0..255).
func MarshalFileSendRequest(r FileSendRequest) ([]byte, error) {
	if len(r.Name) > MaxFileNameLen {
		return nil, fmt.Errorf("%w: name %d > %d", ErrPayloadTooLong, len(r.Name), MaxFileNameLen)
	}
	out := make([]byte, 1+4+8+32+len(r.Name))
	out[0] = r.Slot
	binary.BigEndian.PutUint32(out[1:5], r.FileType)
	binary.BigEndian.PutUint64(out[5:13], r.Size)
	copy(out[13:45], r.FileID[:])
	copy(out[45:], r.Name)
	return out, nil
}

// UnmarshalFileSendRequest decodes a PacketFileSendRequest payload.
func UnmarshalFileSendRequest(payload []byte) (FileSendRequest, error) {
	if len(payload) < 45 {
		return FileSendRequest{}, fmt.Errorf("%w: need at least 45 bytes, got %d", ErrPayloadTooShort, len(payload))
	}
	if len(payload)-45 > MaxFileNameLen {
		return FileSendRequest{}, fmt.Errorf("%w: name %d > %d", ErrPayloadTooLong, len(payload)-45, MaxFileNameLen)
	}
	var r FileSendRequest
	r.Slot = payload[0]
	r.FileType = binary.BigEndian.Uint32(payload[1:5])
	r.Size = binary.BigEndian.Uint64(payload[5:13])
	copy(r.FileID[:], payload[13:45])
	r.Name = string(payload[45:])
	return r, nil
}

// FileControlOp enumerates the file-control operations spec.md §4.3 names.
type FileControlOp byte

const (
	FileControlAccept FileControlOp = iota
	FileControlPause
	FileControlKill
	FileControlSeek
)

// FileControlDirection disambiguates which of the sender's slot arrays a
// FileControl packet's slot number indexes into, so the receiver can map it
// onto its own mirrored array.
type FileControlDirection byte

const (
	// DirectionSending means slot indexes the packet sender's outgoing
	// array (the sender is sending that file).
	DirectionSending FileControlDirection = 0
	// DirectionReceiving means slot indexes the packet sender's incoming
	// array (the sender is receiving that file).
	DirectionReceiving FileControlDirection = 1
)

// FileControl is the decoded payload of a PacketFileControl frame.
type FileControl struct {
	Direction FileControlDirection
	Slot      byte
	Op        FileControlOp
	Extra     []byte
}

// MarshalFileControl encodes direction(1) slot(1) op(1) extra(0..).
func MarshalFileControl(c FileControl) []byte {
	out := make([]byte, 3+len(c.Extra))
	out[0] = byte(c.Direction)
	out[1] = c.Slot
	out[2] = byte(c.Op)
	copy(out[3:], c.Extra)
	return out
}

// UnmarshalFileControl decodes a PacketFileControl payload.
func UnmarshalFileControl(payload []byte) (FileControl, error) {
	if len(payload) < 3 {
		return FileControl{}, fmt.Errorf("%w: need at least 3 bytes, got %d", ErrPayloadTooShort, len(payload))
	}
	c := FileControl{
		Direction: FileControlDirection(payload[0]),
		Slot:      payload[1],
		Op:        FileControlOp(payload[2]),
	}
	if len(payload) > 3 {
		c.Extra = payload[3:]
	}
	return c, nil
}

// MarshalSeekPosition encodes a 64-bit big-endian seek position for use as
// FileControl.Extra on a Seek op.
func MarshalSeekPosition(position uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, position)
	return out
}

// UnmarshalSeekPosition decodes a seek position from FileControl.Extra.
func UnmarshalSeekPosition(extra []byte) (uint64, error) {
	if len(extra) != 8 {
		return 0, fmt.Errorf("%w: seek position must be 8 bytes, got %d", ErrWrongPacketClass, len(extra))
	}
	return binary.BigEndian.Uint64(extra), nil
}

// FileData is the decoded payload of a PacketFileData frame.
type FileData struct {
	Slot  byte
	Chunk []byte
}

// MarshalFileData encodes slot(1) chunk(0..1015).
func MarshalFileData(slot byte, chunk []byte) ([]byte, error) {
	if len(chunk) > MaxFileDataChunk {
		return nil, fmt.Errorf("%w: chunk %d > %d", ErrPayloadTooLong, len(chunk), MaxFileDataChunk)
	}
	out := make([]byte, 1+len(chunk))
	out[0] = slot
	copy(out[1:], chunk)
	return out, nil
}

// UnmarshalFileData decodes a PacketFileData payload.
func UnmarshalFileData(payload []byte) (FileData, error) {
	if len(payload) < 1 {
		return FileData{}, fmt.Errorf("%w: need at least 1 byte, got 0", ErrPayloadTooShort)
	}
	d := FileData{Slot: payload[0]}
	if len(payload) > 1 {
		if len(payload)-1 > MaxFileDataChunk {
			return FileData{}, fmt.Errorf("%w: chunk %d > %d", ErrPayloadTooLong, len(payload)-1, MaxFileDataChunk)
		}
		d.Chunk = payload[1:]
	}
	return d, nil
}
