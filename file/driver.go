package file

import "github.com/sirupsen/logrus"

// SendBudget is the subset of a transport.Conn the chunk-request driver
// needs. Declared locally (rather than imported from package transport)
// so file stays decoupled from the transport package's concerns — any
// connection-like type with these two methods works.
type SendBudget interface {
	FreeSendSlots() int
	IsCongested() bool
}

// ReqChunkFunc is the sender-side chunk-request upcall: the driver asks
// the application to produce length bytes starting at position for the
// given outgoing slot. length == 0 signals end-of-stream.
type ReqChunkFunc func(slot int, position uint64, length int)

// DriveOutgoing runs one tick of the sender-side chunk-request loop over
// every active slot in out, per spec.md §4.3 "Chunk requests (sender
// side)". isAcked reports whether a previously issued packet number has
// been acknowledged, used to finalize Finished slots. send/encode are the
// same wire-send primitives SendChunk uses: a zero-length file has no
// bytes for the application to produce, so the driver sends its terminal
// file_data(0, 0) itself rather than asking for one via reqChunk, per
// spec.md §4.3's zero-length fast path.
func DriveOutgoing(out *SlotSet, budget SendBudget, isAcked func(packetNumber uint32) bool, send func([]byte) (uint32, error), encode func(slot byte, chunk []byte) ([]byte, error), reqChunk ReqChunkFunc) {
	if out.NumActive() == 0 {
		return
	}

	free := budget.FreeSendSlots() - MinSlotsFree
	if free < 0 {
		free = 0
	}
	congested := budget.IsCongested()

	for i := 0; i < MaxSlots; i++ {
		slot := out.At(i)
		if slot.Status == StatusNone {
			continue
		}

		if slot.Status == StatusFinished {
			if slot.lastPacketSet && isAcked(slot.LastPacketNumber) {
				reqChunk(i, slot.Transferred, 0)
				out.Free(i)
			}
			continue
		}

		if slot.Status != StatusTransferring || slot.Paused != 0 {
			continue
		}

		if slot.Size == 0 {
			SendChunk(out, i, 0, nil, budget.FreeSendSlots(), send, encode)
			continue
		}

		for slot.Requested < slot.Size && free > 0 && !congested {
			length := int(slot.Size - slot.Requested)
			if length > MaxChunkSize {
				length = MaxChunkSize
			}
			reqChunk(i, slot.Requested, length)
			slot.Requested += uint64(length)
			slot.SlotsAllocated++
			free--
		}
	}
}

// SendChunk applies the application's response to a chunk-request upcall:
// it validates the preconditions spec.md §4.3 "Chunk delivery (sender
// side)" enforces, sends the FileData packet via send, and advances the
// slot's transferred offset. send must return the transport packet number
// for reliable delivery tracking.
func SendChunk(out *SlotSet, slot int, position uint64, data []byte, freeSendSlots int, send func([]byte) (uint32, error), encode func(slot byte, chunk []byte) ([]byte, error)) (uint32, error) {
	s := out.At(slot)
	if s == nil {
		return 0, ErrInvalidFileNumber
	}
	if s.Status != StatusTransferring {
		return 0, ErrNotTransferring
	}
	if len(data) > MaxChunkSize {
		return 0, ErrChunkTooLarge
	}
	if s.Size != UnknownSize {
		remaining := s.Size - s.Transferred
		if uint64(len(data)) > remaining {
			return 0, ErrChunkTooLarge
		}
	}
	if position != s.Transferred {
		return 0, ErrBadPosition
	}
	if freeSendSlots < MinSlotsFree {
		return 0, ErrSendQueueFull
	}

	payload, err := encode(byte(slot), data)
	if err != nil {
		return 0, err
	}
	pn, err := send(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"func": "SendChunk", "slot": slot, "position": position, "error": err,
		}).Warn("file chunk send failed")
		return 0, ErrSendFailed
	}

	s.Transferred += uint64(len(data))
	if s.SlotsAllocated > 0 {
		s.SlotsAllocated--
	}

	isLast := (s.Size != UnknownSize && s.Transferred >= s.Size) || (s.Size == 0)
	if isLast {
		s.Status = StatusFinished
		s.LastPacketNumber = pn
		s.lastPacketSet = true
		logrus.WithFields(logrus.Fields{
			"func": "SendChunk", "slot": slot, "transferred": s.Transferred,
		}).Debug("outgoing file transfer reached end of stream")
	}
	return pn, nil
}
