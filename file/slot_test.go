package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNumberRoundTrip(t *testing.T) {
	dir, slot := SplitFileNumber(FileNumber(DirectionOutgoing, 5))
	assert.Equal(t, DirectionOutgoing, dir)
	assert.Equal(t, 5, slot)

	dir, slot = SplitFileNumber(FileNumber(DirectionIncoming, 5))
	assert.Equal(t, DirectionIncoming, dir)
	assert.Equal(t, 5, slot)
}

func TestSlotSeekWhileTransferringIsBadState(t *testing.T) {
	// spec.md §8 boundary: file_seek while Transferring -> BadState.
	set := NewSlotSet(DirectionIncoming)
	idx, err := set.NewOutgoing([32]byte{1}, 0, 100, "f")
	require.NoError(t, err)
	s := set.At(idx)
	require.NoError(t, s.accept(false))
	assert.ErrorIs(t, s.seek(10), ErrBadState)
}

func TestSlotSeekBeforeAcceptSetsPosition(t *testing.T) {
	// spec.md §8 scenario 4: seek before accept moves transferred/requested.
	set := NewSlotSet(DirectionIncoming)
	idx, err := set.NewOutgoing([32]byte{1}, 0, 10*1024*1024, "f")
	require.NoError(t, err)
	s := set.At(idx)
	require.NoError(t, s.seek(1048576))
	assert.Equal(t, uint64(1048576), s.Transferred)
	assert.Equal(t, uint64(1048576), s.Requested)
	require.NoError(t, s.accept(false))
	assert.Equal(t, StatusTransferring, s.Status)
}

func TestSlotPauseContention(t *testing.T) {
	// spec.md §8 scenario 5: A pauses; B's Accept fails PausedByOther; A's
	// Accept resumes.
	set := NewSlotSet(DirectionOutgoing)
	idx, err := set.NewOutgoing([32]byte{1}, 0, 10, "f")
	require.NoError(t, err)
	s := set.At(idx)
	require.NoError(t, s.accept(true)) // NotAccepted -> Transferring

	require.NoError(t, s.pause(true)) // A (us, the sender) pauses

	err = s.accept(false) // B (remote) tries to resume -- not applicable on sender side
	assert.Error(t, err)

	require.NoError(t, s.accept(true)) // A resumes
	assert.Equal(t, uint8(0), s.Paused)
	assert.Equal(t, StatusTransferring, s.Status)
}

func TestSlotPauseRejectsDoublePause(t *testing.T) {
	set := NewSlotSet(DirectionOutgoing)
	idx, _ := set.NewOutgoing([32]byte{1}, 0, 10, "f")
	s := set.At(idx)
	require.NoError(t, s.accept(true))
	require.NoError(t, s.pause(true))
	assert.ErrorIs(t, s.pause(true), ErrAlreadyPaused)
}

func TestSlotKillResetsUnconditionally(t *testing.T) {
	set := NewSlotSet(DirectionOutgoing)
	idx, _ := set.NewOutgoing([32]byte{1}, 0, 10, "f")
	set.Free(idx)
	s := set.At(idx)
	assert.Equal(t, StatusNone, s.Status)
	assert.Equal(t, 0, set.NumActive())
}

func TestSlotSetNoSlotsWhenFull(t *testing.T) {
	set := NewSlotSet(DirectionOutgoing)
	for i := 0; i < MaxSlots; i++ {
		_, err := set.NewOutgoing([32]byte{byte(i)}, 0, 1, "f")
		require.NoError(t, err)
	}
	_, err := set.NewOutgoing([32]byte{9}, 0, 1, "f")
	assert.ErrorIs(t, err, ErrNoSlots)
}
