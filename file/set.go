package file

import "github.com/sirupsen/logrus"

// SlotSet is one friend's fixed-size array of concurrent transfers in a
// single direction (outgoing or incoming), per spec.md §3.
type SlotSet struct {
	slots   [MaxSlots]Slot
	active  int
	dirName Direction
}

// NewSlotSet creates an empty slot array for the given direction.
func NewSlotSet(dir Direction) *SlotSet {
	return &SlotSet{dirName: dir}
}

// Direction reports which array this is.
func (s *SlotSet) Direction() Direction {
	return s.dirName
}

// NumActive is num_sending_files / num_receiving_files from spec.md §3:
// the count of slots whose status is not StatusNone.
func (s *SlotSet) NumActive() int {
	return s.active
}

// At returns a pointer to the slot at the given index, or nil if out of
// range. The returned pointer is only valid until the next call to
// allocate/free on this set from a different index; callers must not
// retain it across ticks.
func (s *SlotSet) At(i int) *Slot {
	if i < 0 || i >= MaxSlots {
		return nil
	}
	return &s.slots[i]
}

// FirstFree returns the lowest-index empty slot, or -1 if the array is
// full.
func (s *SlotSet) FirstFree() int {
	for i := range s.slots {
		if s.slots[i].Status == StatusNone {
			return i
		}
	}
	return -1
}

// NewOutgoing allocates the first free slot as an outgoing transfer and
// returns its index.
func (s *SlotSet) NewOutgoing(id [32]byte, fileType uint32, size uint64, name string) (int, error) {
	idx := s.FirstFree()
	if idx < 0 {
		return -1, ErrNoSlots
	}
	if err := s.slots[idx].newOutgoing(id, fileType, size, name); err != nil {
		return -1, err
	}
	s.active++
	logrus.WithFields(logrus.Fields{
		"func": "SlotSet.NewOutgoing", "slot": idx, "size": size, "name": name,
	}).Debug("outgoing file slot allocated")
	return idx, nil
}

// NewIncoming initializes the slot at a specific index (chosen by the
// sender) as an incoming transfer. Returns ErrSlotNotEmpty if occupied,
// ErrInvalidFileNumber if out of range.
func (s *SlotSet) NewIncoming(idx int, id [32]byte, fileType uint32, size uint64, name string) error {
	slot := s.At(idx)
	if slot == nil {
		return ErrInvalidFileNumber
	}
	if err := slot.newIncoming(id, fileType, size, name); err != nil {
		return err
	}
	s.active++
	logrus.WithFields(logrus.Fields{
		"func": "SlotSet.NewIncoming", "slot": idx, "size": size, "name": name,
	}).Debug("incoming file slot allocated")
	return nil
}

// Free transitions the slot at idx to StatusNone, decrementing the active
// count if it was active. Safe to call on an already-None slot.
func (s *SlotSet) Free(idx int) {
	slot := s.At(idx)
	if slot == nil || slot.Status == StatusNone {
		return
	}
	logrus.WithFields(logrus.Fields{
		"func": "SlotSet.Free", "slot": idx, "transferred": slot.Transferred, "size": slot.Size,
	}).Debug("file slot freed")
	slot.kill()
	s.active--
}

// DiscardAll forces every slot to StatusNone without firing any terminal
// upcall, per spec.md §4.3 "Liveness" (friend went offline).
func (s *SlotSet) DiscardAll() {
	for i := range s.slots {
		s.slots[i].Reset()
	}
	s.active = 0
}
