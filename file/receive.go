package file

import (
	"github.com/sirupsen/logrus"

	"github.com/nyxmesh/messenger/wire"
)

// RecvDataFunc is the receiver-side chunk-delivery upcall: invoked with
// the bytes received for an incoming slot. len(data) == 0 signals
// end-of-stream.
type RecvDataFunc func(slot int, position uint64, data []byte)

// HandleSendRequest processes an inbound FileSendRequest: the slot must be
// None, per spec.md §4.3 "Receive side". On success the slot moves to
// NotAccepted and the caller is expected to fire the file_sendrequest
// upcall.
func HandleSendRequest(in *SlotSet, slot int, id [32]byte, fileType uint32, size uint64, name string) error {
	return in.NewIncoming(slot, id, fileType, size, name)
}

// HandleControl applies an inbound FileControl packet to the slot set it
// targets (in = the local array matching the control's direction, already
// resolved by the caller), per spec.md §4.3 "Control semantics". isSender
// reports whether this set is the local outgoing (sending) side.
func HandleControl(set *SlotSet, slotIdx int, op wire.FileControlOp, extra []byte, isSender bool) error {
	s := set.At(slotIdx)
	if s == nil {
		return ErrInvalidFileNumber
	}
	switch op {
	case wire.FileControlAccept:
		if err := s.accept(isSender); err != nil {
			return err
		}
		return nil
	case wire.FileControlPause:
		return s.pause(!isSender)
	case wire.FileControlKill:
		set.Free(slotIdx)
		return nil
	case wire.FileControlSeek:
		if !isSender {
			return ErrBadState
		}
		if len(extra) != 8 {
			return ErrBadControl
		}
		position := beUint64(extra)
		return s.seek(position)
	default:
		return ErrBadControl
	}
}

// Seek repositions the caller's own slot directly, bypassing the isSender
// gate HandleControl enforces for inbound wire packets. A transfer's
// receiver calls this locally (before accepting) to resume at a known
// offset; the caller is responsible for separately notifying the peer so
// the sender's mirrored HandleControl(..., FileControlSeek, ...) call
// repositions the sending side too.
func Seek(set *SlotSet, slotIdx int, position uint64) error {
	s := set.At(slotIdx)
	if s == nil {
		return ErrInvalidFileNumber
	}
	return s.seek(position)
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// HandleData applies an inbound FileData packet to an incoming slot, per
// spec.md §4.3 "Receive side". Only legal while Transferring; length is
// clamped so transferred+length never exceeds size. Fires recv via the
// caller-supplied upcall at (position=transferred-before, data), then a
// terminal zero-length upcall and frees the slot when the stream ends
// (explicit len==0 chunk, or the final byte of a known size is reached).
func HandleData(in *SlotSet, slot int, data []byte, recv RecvDataFunc) error {
	s := in.At(slot)
	if s == nil {
		return ErrInvalidFileNumber
	}
	if s.Status != StatusTransferring {
		return ErrNotTransferring
	}

	length := len(data)
	if s.Size != UnknownSize {
		remaining := s.Size - s.Transferred
		if uint64(length) > remaining {
			length = int(remaining)
			data = data[:length]
		}
	}

	position := s.Transferred
	recv(slot, position, data)
	s.Transferred += uint64(length)

	endOfStream := length == 0 || (s.Size != UnknownSize && s.Transferred >= s.Size)
	if endOfStream {
		if length != 0 {
			recv(slot, s.Transferred, nil)
		}
		logrus.WithFields(logrus.Fields{
			"func": "HandleData", "slot": slot, "transferred": s.Transferred,
		}).Debug("incoming file transfer reached end of stream")
		in.Free(slot)
	}
	return nil
}
