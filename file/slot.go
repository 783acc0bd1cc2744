package file

import (
	"math"

	"github.com/sirupsen/logrus"
)

// MaxSlots is MAX_CONCURRENT_FILE_PIPES from spec.md §3: the fixed size of
// each per-friend, per-direction slot array.
const MaxSlots = 256

// MaxChunkSize is the largest chunk a single FileData packet can carry,
// matching wire.MaxFileDataChunk.
const MaxChunkSize = 1015

// UnknownSize marks a transfer whose total length is not known up front
// (a live stream), per spec.md §4.3.
const UnknownSize = math.MaxUint64

// CryptoMinQueueLength approximates the transport's minimum reliable
// send-queue depth the core reserves headroom against; MinSlotsFree is a
// quarter of it, per spec.md §4.3 step 1.
const CryptoMinQueueLength = 32

// MinSlotsFree is the number of transport send slots file transfers must
// always leave free for control/message traffic.
const MinSlotsFree = CryptoMinQueueLength / 4

// Status is the file-transfer slot state machine from spec.md §4.3.
type Status uint8

const (
	StatusNone Status = iota
	StatusNotAccepted
	StatusTransferring
	StatusFinished
)

// Direction distinguishes a friend's two slot arrays.
type Direction uint8

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// PauseMask bits, combined in Slot.Paused.
const (
	PauseUS    uint8 = 1 << 0
	PauseOther uint8 = 1 << 1
)

// Slot is one entry in a friend's outgoing or incoming file-transfer
// array. The zero value is an empty (StatusNone) slot.
type Slot struct {
	Status           Status
	Size             uint64
	Transferred      uint64
	Requested        uint64
	Paused           uint8
	ID               [32]byte
	FileType         uint32
	Name             string
	LastPacketNumber uint32
	lastPacketSet    bool
	SlotsAllocated   int
}

// IsActive reports whether this slot is anything other than StatusNone —
// used to compute NumSendingFiles per spec.md §3.
func (s *Slot) IsActive() bool {
	return s.Status != StatusNone
}

// Reset returns the slot to StatusNone and clears every other field, per
// spec.md §3's invariant that None slots carry no other meaningful bytes.
func (s *Slot) Reset() {
	*s = Slot{}
}

// FileNumber encodes (direction, slot) into the 32-bit handle the API
// exposes, per spec.md §4.3 "Addressing at the API": outgoing files are
// the bare slot index; incoming files set bit 16.
func FileNumber(dir Direction, slot int) uint32 {
	if dir == DirectionIncoming {
		return (uint32(slot) + 1) << 16
	}
	return uint32(slot)
}

// SplitFileNumber decodes a FileNumber back into its direction and slot
// index.
func SplitFileNumber(fileNumber uint32) (Direction, int) {
	if fileNumber&0xFFFF0000 != 0 {
		return DirectionIncoming, int(fileNumber>>16) - 1
	}
	return DirectionOutgoing, int(fileNumber)
}

// newOutgoing initializes a None slot as a freshly offered outgoing
// transfer in NotAccepted state.
func (s *Slot) newOutgoing(id [32]byte, fileType uint32, size uint64, name string) error {
	if s.Status != StatusNone {
		return ErrSlotNotEmpty
	}
	s.Status = StatusNotAccepted
	s.ID = id
	s.FileType = fileType
	s.Size = size
	s.Name = name
	return nil
}

// newIncoming initializes a None slot from a received FileSendRequest.
func (s *Slot) newIncoming(id [32]byte, fileType uint32, size uint64, name string) error {
	if s.Status != StatusNone {
		return ErrSlotNotEmpty
	}
	s.Status = StatusNotAccepted
	s.ID = id
	s.FileType = fileType
	s.Size = size
	s.Name = name
	return nil
}

// accept moves NotAccepted -> Transferring (either side), or resumes a
// locally-paused Transferring slot. Matches spec.md §4.3 "Control
// semantics" for Accept.
func (s *Slot) accept(isSender bool) error {
	switch s.Status {
	case StatusNotAccepted:
		s.Status = StatusTransferring
		logrus.WithFields(logrus.Fields{"func": "Slot.accept", "size": s.Size}).Debug("file transfer accepted")
		return nil
	case StatusTransferring:
		if !isSender {
			return ErrBadState
		}
		if s.Paused&PauseOther != 0 && s.Paused&PauseUS == 0 {
			return ErrPausedByOther
		}
		if s.Paused == 0 {
			return ErrNotPaused
		}
		s.Paused &^= PauseUS
		logrus.WithField("func", "Slot.accept").Debug("file transfer resumed from local pause")
		return nil
	default:
		logrus.WithFields(logrus.Fields{"func": "Slot.accept", "status": s.Status}).Warn("accept rejected: slot not in an acceptable state")
		return ErrBadState
	}
}

// pause sets PauseUS (sender) or PauseOther (we are told the remote
// paused), rejecting if already paused by the caller or not transferring.
func (s *Slot) pause(byUs bool) error {
	if s.Status != StatusTransferring {
		logrus.WithFields(logrus.Fields{"func": "Slot.pause", "status": s.Status}).Warn("pause rejected: slot is not transferring")
		return ErrNotTransferring
	}
	bit := PauseOther
	if byUs {
		bit = PauseUS
	}
	if s.Paused&bit != 0 {
		return ErrAlreadyPaused
	}
	s.Paused |= bit
	logrus.WithFields(logrus.Fields{"func": "Slot.pause", "by_us": byUs}).Debug("file transfer paused")
	return nil
}

// kill unconditionally returns the slot to None.
func (s *Slot) kill() {
	logrus.WithFields(logrus.Fields{"func": "Slot.kill", "status": s.Status, "transferred": s.Transferred}).Debug("file transfer killed")
	s.Reset()
}

// seek repositions a not-yet-accepted slot: legal only while NotAccepted
// and position < size. A Seek control arrives at the file sender (the
// receiver is the one requesting a different start offset), so callers
// apply this to the outgoing slot before it moves to Transferring.
func (s *Slot) seek(position uint64) error {
	if s.Status != StatusNotAccepted {
		logrus.WithFields(logrus.Fields{"func": "Slot.seek", "status": s.Status}).Warn("seek rejected: slot already accepted")
		return ErrBadState
	}
	if s.Size != UnknownSize && position >= s.Size {
		logrus.WithFields(logrus.Fields{"func": "Slot.seek", "position": position, "size": s.Size}).Warn("seek rejected: position past end of file")
		return ErrBadPosition
	}
	s.Transferred = position
	s.Requested = position
	logrus.WithField("func", "Slot.seek").WithField("position", position).Debug("file transfer repositioned")
	return nil
}
