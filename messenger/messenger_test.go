package messenger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/transport/memory"
	"github.com/nyxmesh/messenger/wire"
)

// bringOnline wires two Messengers' transports directly and drives both
// to Online, bypassing the request/timeout dance so tests can focus on
// post-Online behavior.
func bringOnline(t *testing.T) (a, b *Messenger, friendOnA, friendOnB uint32) {
	t.Helper()
	link := memory.NewLink(32)
	connA, connB := link.Pair()

	trA := memory.New(32)
	trB := memory.New(32)
	a = New([32]byte{0xA}, trA, nil)
	b = New([32]byte{0xB}, trB, nil)

	fnA, err := a.Roster.AddFriendNoRequest([32]byte{0xB})
	require.NoError(t, err)
	fnB, err := b.Roster.AddFriendNoRequest([32]byte{0xA})
	require.NoError(t, err)

	trA.Adopt([32]byte{0xB}, fnA, 0, connA)
	trB.Adopt([32]byte{0xA}, fnB, 0, connB)
	a.Roster.Get(fnA).Devices[0].Conn = connA
	b.Roster.Get(fnB).Devices[0].Conn = connB

	a.Roster.Get(fnA).Devices[0].Status = friend.DeviceOnline
	a.Roster.Get(fnA).GoOnline()
	b.Roster.Get(fnB).Devices[0].Status = friend.DeviceOnline
	b.Roster.Get(fnB).GoOnline()

	return a, b, fnA, fnB
}

func TestSendMessageDeliversAndReceiptsInOrder(t *testing.T) {
	// spec.md §8 round-trip property + concrete scenario 6 (order preserved
	// even though this harness acks immediately, in-order).
	a, b, fnA, fnB := bringOnline(t)

	var received []string
	b.Callbacks.FriendMessage = func(friendNumber uint32, action bool, text string) {
		received = append(received, text)
	}
	var receipts []uint32
	a.Callbacks.ReadReceipt = func(friendNumber uint32, messageID uint32) {
		receipts = append(receipts, messageID)
	}

	for _, text := range []string{"m1", "m2", "m3"} {
		_, err := a.SendMessage(fnA, false, text)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, received)

	now := time.Now()
	a.Tick(now)
	assert.Equal(t, []uint32{0, 1, 2}, receipts)
	_ = fnB
}

func TestSendMessageRejectsWhenNotOnline(t *testing.T) {
	tr := memory.New(8)
	m := New([32]byte{0}, tr, nil)
	n, err := m.Roster.AddFriend(friend.Address{PublicKey: [32]byte{1}}, []byte("hi"))
	require.NoError(t, err)

	_, err = m.SendMessage(n, false, "hello")
	assert.ErrorIs(t, err, ErrNotOnline)
}

func TestSetNameMarksOnlineFriendsForResend(t *testing.T) {
	a, _, fnA, _ := bringOnline(t)
	a.Roster.Get(fnA).SentName = true

	require.NoError(t, a.SetName("alice"))
	assert.False(t, a.Roster.Get(fnA).SentName)
}

func TestFileSendRequestFlowDeliversChunksInOrder(t *testing.T) {
	a, b, fnA, fnB := bringOnline(t)

	var offeredSize uint64
	b.Callbacks.FileSendRequest = func(friendNumber, fileNumber, kind uint32, size uint64, name string) {
		offeredSize = size
		require.NoError(t, b.FileControl(fnB, fileNumber, wire.FileControlAccept, nil))
	}
	var gotChunks [][]byte
	b.Callbacks.FileData = func(friendNumber, fileNumber uint32, position uint64, data []byte) {
		gotChunks = append(gotChunks, append([]byte(nil), data...))
	}
	a.Callbacks.FileReqChunk = func(friendNumber, fileNumber uint32, position uint64, length int) {
		if length == 0 {
			require.NoError(t, a.FileData(friendNumber, fileNumber, position, nil))
			return
		}
		chunk := make([]byte, length)
		for i := range chunk {
			chunk[i] = byte(position) + byte(i)
		}
		require.NoError(t, a.FileData(friendNumber, fileNumber, position, chunk))
	}

	fileNumber, err := a.FileSend(fnA, 0, 10, "test.bin")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), offeredSize)

	a.Tick(time.Now())

	var total int
	for _, c := range gotChunks {
		total += len(c)
	}
	assert.Equal(t, 10, total)
	_ = fileNumber
}

func TestFileControlSeekRepositionsBothSidesBeforeAccept(t *testing.T) {
	// spec.md §8 scenario 4: the receiver seeks before accepting, and the
	// sender's file_reqchunk positions begin at the seeked offset rather
	// than 0.
	a, b, fnA, fnB := bringOnline(t)

	var fileNumberOnB uint32
	b.Callbacks.FileSendRequest = func(friendNumber, fileNumber, kind uint32, size uint64, name string) {
		fileNumberOnB = fileNumber
	}

	fileNumberOnA, err := a.FileSend(fnA, 0, 10*1024*1024, "big.bin")
	require.NoError(t, err)

	const seekTo = uint64(1048576)
	require.NoError(t, b.FileControl(fnB, fileNumberOnB, wire.FileControlSeek, wire.MarshalSeekPosition(seekTo)))

	_, slotOnA := file.SplitFileNumber(fileNumberOnA)
	sendingSlot := a.Roster.Get(fnA).FileSending.At(slotOnA)
	assert.Equal(t, seekTo, sendingSlot.Transferred)
	assert.Equal(t, seekTo, sendingSlot.Requested)

	_, slotOnB := file.SplitFileNumber(fileNumberOnB)
	receivingSlot := b.Roster.Get(fnB).FileReceiving.At(slotOnB)
	assert.Equal(t, seekTo, receivingSlot.Transferred)

	require.NoError(t, b.FileControl(fnB, fileNumberOnB, wire.FileControlAccept, nil))

	var firstReqPosition uint64
	var gotReqChunk bool
	a.Callbacks.FileReqChunk = func(friendNumber, fileNumber uint32, position uint64, length int) {
		if !gotReqChunk {
			firstReqPosition = position
			gotReqChunk = true
		}
	}
	a.Tick(time.Now())

	require.True(t, gotReqChunk)
	assert.Equal(t, seekTo, firstReqPosition)
}

func TestFileControlSeekOnSenderSideIsRejected(t *testing.T) {
	// A local Seek repositions a slot we are receiving; calling it locally
	// against a slot we are sending is not a valid local action.
	a, _, fnA, _ := bringOnline(t)

	fileNumberOnA, err := a.FileSend(fnA, 0, 1024, "f.bin")
	require.NoError(t, err)

	err = a.FileControl(fnA, fileNumberOnA, wire.FileControlSeek, wire.MarshalSeekPosition(512))
	assert.Error(t, err)
}
