package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/transport/memory"
	"github.com/nyxmesh/messenger/wire"
)

func newRosterWithFriend(t *testing.T, status friend.Status) (*friend.Roster, uint32) {
	t.Helper()
	tr := memory.New(8)
	r := friend.NewRoster([32]byte{0}, tr)
	n, err := r.AddFriendNoRequest([32]byte{1})
	require.NoError(t, err)
	r.Get(n).Status = status
	if status == friend.StatusOnline {
		r.Get(n).Devices[0].Status = friend.DeviceOnline
	}
	return r, n
}

func TestDispatchDropsNonOnlinePacketWhileNotOnline(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusConfirmed)
	d := New(r)
	var got string
	d.OnMessage = func(friendNumber uint32, action bool, text string) { got = text }

	raw := wire.Frame(wire.PacketMessage, []byte("hi"))
	d.Dispatch(n, 0, raw)
	assert.Empty(t, got)
}

func TestDispatchOnlinePacketTransitionsFriend(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusConfirmed)
	d := New(r)
	var connected bool
	d.OnConnect = func(friendNumber uint32, online bool) { connected = online }

	raw := wire.Frame(wire.PacketOnline, nil)
	d.Dispatch(n, 0, raw)

	assert.True(t, connected)
	assert.Equal(t, friend.StatusOnline, r.Get(n).Status)
}

func TestDispatchMessageNulTerminatesBeforeUpcall(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	var got string
	d.OnMessage = func(friendNumber uint32, action bool, text string) { got = text }

	payload := append([]byte("hello"), 0, 'X')
	raw := wire.Frame(wire.PacketMessage, payload)
	d.Dispatch(n, 0, raw)
	assert.Equal(t, "hello", got)
}

func TestDispatchDropsMalformedPacketSilently(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	called := false
	d.OnUserStatus = func(uint32, friend.UserStatus) { called = true }

	raw := wire.Frame(wire.PacketUserStatus, []byte{1, 2}) // must be exactly 1 byte
	d.Dispatch(n, 0, raw)
	assert.False(t, called)
}

func TestDispatchFileSendRequestFiresUpcall(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	var gotSize uint64
	d.OnFileRecvReq = func(friendNumber, fileNumber, kind uint32, size uint64, name string) {
		gotSize = size
	}

	req := wire.FileSendRequest{Slot: 0, FileType: 0, Size: 1024, Name: "a.txt"}
	payload, err := wire.MarshalFileSendRequest(req)
	require.NoError(t, err)
	raw := wire.Frame(wire.PacketFileSendRequest, payload)
	d.Dispatch(n, 0, raw)

	assert.Equal(t, uint64(1024), gotSize)
	assert.Equal(t, 1, r.Get(n).FileReceiving.NumActive())
}

func TestDispatchCustomLosslessRoutesByRange(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	var got []byte
	d.RegisterCustomLossless(func(friendNumber uint32, data []byte) { got = data })

	raw := wire.Frame(wire.LosslessRangeStart, []byte("payload"))
	d.Dispatch(n, 0, raw)
	assert.Equal(t, raw, got)
}

func TestDispatchDropsNonOnlinePacketFiresOnDrop(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusConfirmed)
	d := New(r)
	var reason string
	d.OnDrop = func(r string) { reason = r }

	raw := wire.Frame(wire.PacketMessage, []byte("hi"))
	d.Dispatch(n, 0, raw)
	assert.Equal(t, "not online", reason)
}

func TestDispatchUnknownFriendFiresOnDrop(t *testing.T) {
	r, _ := newRosterWithFriend(t, friend.StatusConfirmed)
	d := New(r)
	var called bool
	d.OnDrop = func(string) { called = true }

	raw := wire.Frame(wire.PacketMessage, []byte("hi"))
	d.Dispatch(999, 0, raw)
	assert.True(t, called)
}

func TestDispatchFileControlSeekRepositionsSenderSlot(t *testing.T) {
	// spec.md §8 scenario 4: a Seek control arrives at the file sender and
	// must reposition the outgoing slot, not the incoming one.
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	f := r.Get(n)
	slot, err := f.FileSending.NewOutgoing([32]byte{9}, 0, 10*1024*1024, "a.bin")
	require.NoError(t, err)

	ctl := wire.FileControl{
		Direction: wire.DirectionReceiving, // the packet sender is receiving this file
		Slot:      byte(slot),
		Op:        wire.FileControlSeek,
		Extra:     wire.MarshalSeekPosition(1048576),
	}
	payload := wire.MarshalFileControl(ctl)
	raw := wire.Frame(wire.PacketFileControl, payload)
	d.Dispatch(n, 0, raw)

	s := f.FileSending.At(slot)
	assert.Equal(t, uint64(1048576), s.Transferred)
	assert.Equal(t, uint64(1048576), s.Requested)

	require.NoError(t, file.HandleControl(f.FileSending, slot, wire.FileControlAccept, nil, true))
	assert.Equal(t, file.StatusTransferring, s.Status)
}

func TestDispatchFileControlSeekOnReceiveSideIsRejected(t *testing.T) {
	// A Seek control targeting the receiver's own incoming slot (direction
	// Sending, i.e. the remote is sending to us) is not applicable there;
	// Seek only ever repositions the sender's outgoing slot.
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	f := r.Get(n)
	require.NoError(t, file.HandleSendRequest(f.FileReceiving, 0, [32]byte{9}, 0, 10*1024*1024, "a.bin"))

	ctl := wire.FileControl{
		Direction: wire.DirectionSending, // the packet sender is sending this file to us
		Slot:      0,
		Op:        wire.FileControlSeek,
		Extra:     wire.MarshalSeekPosition(1048576),
	}
	raw := wire.Frame(wire.PacketFileControl, wire.MarshalFileControl(ctl))

	var called bool
	d.OnFileControl = func(uint32, uint32, wire.FileControlOp) { called = true }
	d.Dispatch(n, 0, raw)

	assert.False(t, called)
	s := f.FileReceiving.At(0)
	assert.Equal(t, uint64(0), s.Transferred)
}

func TestDispatchLossyPrefersFriendSpecificHandler(t *testing.T) {
	r, n := newRosterWithFriend(t, friend.StatusOnline)
	d := New(r)
	var globalCalled, friendCalled bool
	d.RegisterCustomLossy(func(uint32, []byte) { globalCalled = true })
	d.RegisterFriendLossy(n, func(uint32, []byte) { friendCalled = true })

	raw := wire.Frame(wire.LossyRangeStart, []byte("rtp"))
	d.DispatchLossy(n, 0, raw)

	assert.True(t, friendCalled)
	assert.False(t, globalCalled)
}
