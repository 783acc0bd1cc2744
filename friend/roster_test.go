package friend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/transport/memory"
)

func testAddress(key byte, nospam byte) Address {
	var a Address
	a.PublicKey[0] = key
	a.Nospam[0] = nospam
	return a
}

func TestAddFriendRejectsOwnKey(t *testing.T) {
	self := [32]byte{7}
	r := NewRoster(self, memory.New(8))
	addr := Address{PublicKey: self}
	_, err := r.AddFriend(addr, []byte("hi"))
	assert.ErrorIs(t, err, ErrOwnKey)
}

func TestAddFriendRejectsEmptyAndOversizePayload(t *testing.T) {
	r := NewRoster([32]byte{0}, memory.New(8))
	_, err := r.AddFriend(testAddress(1, 0), nil)
	assert.ErrorIs(t, err, ErrNoMessage)

	_, err = r.AddFriend(testAddress(1, 0), make([]byte, MaxRequestPayload+1))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestAddFriendKeyCollisionSetsNewNospam(t *testing.T) {
	// spec.md §8 concrete scenario 1.
	r := NewRoster([32]byte{0}, memory.New(8))
	addr1 := testAddress(1, 0x01)
	n1, err := r.AddFriend(addr1, []byte("hi"))
	require.NoError(t, err)

	addr2 := testAddress(1, 0x02)
	n2, err := r.AddFriend(addr2, []byte("hi"))
	assert.ErrorIs(t, err, ErrSetNewNospam)
	assert.Equal(t, n1, n2)
	assert.Equal(t, addr2.Nospam, r.Get(n1).RequestNospam)
}

func TestAddFriendAlreadyConfirmedReturnsAlreadySent(t *testing.T) {
	r := NewRoster([32]byte{0}, memory.New(8))
	n, err := r.AddFriendNoRequest([32]byte{2})
	require.NoError(t, err)

	addr := testAddress(2, 0)
	n2, err := r.AddFriend(addr, []byte("hi"))
	assert.ErrorIs(t, err, ErrAlreadySent)
	assert.Equal(t, n, n2)
}

func TestDeleteFriendTrimsTail(t *testing.T) {
	r := NewRoster([32]byte{0}, memory.New(8))
	n0, _ := r.AddFriendNoRequest([32]byte{1})
	n1, _ := r.AddFriendNoRequest([32]byte{2})
	assert.Equal(t, 2, r.NumFriends())

	require.NoError(t, r.DeleteFriend(n1))
	assert.Equal(t, 1, r.NumFriends())

	require.NoError(t, r.DeleteFriend(n0))
	assert.Equal(t, 0, r.NumFriends())
}

func TestDeleteFriendReusesFreedSlot(t *testing.T) {
	r := NewRoster([32]byte{0}, memory.New(8))
	n0, _ := r.AddFriendNoRequest([32]byte{1})
	_, _ = r.AddFriendNoRequest([32]byte{2})
	require.NoError(t, r.DeleteFriend(n0))

	n2, err := r.AddFriendNoRequest([32]byte{3})
	require.NoError(t, err)
	assert.Equal(t, n0, n2)
}

func TestFriendRequestRetryDoublesTimeout(t *testing.T) {
	// spec.md §8 concrete scenario 2.
	r := NewRoster([32]byte{0}, memory.New(8))
	n, err := r.AddFriend(testAddress(1, 0), []byte("hi"))
	require.NoError(t, err)
	f := r.Get(n)

	now := time.Unix(0, 0)
	sendCount := 0
	send := func(nospam [4]byte, payload []byte) bool {
		sendCount++
		return true
	}

	f.advanceRequest(now, send)
	assert.Equal(t, StatusRequested, f.Status)
	assert.Equal(t, 1, sendCount)
	firstTimeout := f.RequestTimeout

	now = now.Add(2*FriendRequestTimeout + time.Second)
	f.advanceRequest(now, send)
	assert.Equal(t, StatusAdded, f.Status)
	assert.Equal(t, firstTimeout*2, f.RequestTimeout)

	f.advanceRequest(now, send)
	assert.Equal(t, StatusRequested, f.Status)
	assert.Equal(t, 2, sendCount)
}

func TestGetFriendByPublicKeyAndDeviceIndex(t *testing.T) {
	r := NewRoster([32]byte{0}, memory.New(8))
	n, err := r.AddFriendNoRequest([32]byte{9})
	require.NoError(t, err)

	got, ok := r.GetFriendByPublicKey([32]byte{9})
	require.True(t, ok)
	assert.Equal(t, n, got)

	gotN, gotDev, ok := r.GetFriendDeviceIndex([32]byte{9})
	require.True(t, ok)
	assert.Equal(t, n, gotN)
	assert.Equal(t, 0, gotDev)
}
