package persist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/transport/memory"
)

func testRoster(t *testing.T) *friend.Roster {
	t.Helper()
	var self [32]byte
	self[0] = 0xAA
	return friend.NewRoster(self, memory.New(32))
}

func pk(b byte) [32]byte {
	var out [32]byte
	out[0] = b
	return out
}

func TestSerializeDeserializeRoundTripsConfirmedFriend(t *testing.T) {
	r := testRoster(t)
	n, err := r.AddFriendNoRequest(pk(1))
	require.NoError(t, err)

	f := r.Get(n)
	f.Nickname = "alice"
	f.StatusMessage = "hi there"
	f.UserStatus = friend.UserStatusAway

	blob, err := Serialize(r, SelfState{Name: "bob", StatusMessage: "idle", UserStatus: friend.UserStatusBusy})
	require.NoError(t, err)

	r2 := testRoster(t)
	self, err := Deserialize(blob, r2)
	require.NoError(t, err)
	require.Equal(t, "bob", self.Name)
	require.Equal(t, "idle", self.StatusMessage)
	require.Equal(t, friend.UserStatusBusy, self.UserStatus)

	restored := r2.Get(n)
	require.NotNil(t, restored)
	require.Equal(t, friend.StatusConfirmed, restored.Status)
	require.Equal(t, "alice", restored.Nickname)
	require.Equal(t, "hi there", restored.StatusMessage)
	require.Equal(t, friend.UserStatusAway, restored.UserStatus)
	require.Equal(t, pk(1), restored.PrimaryPublicKey())
}

func TestSerializeDeserializeIgnoresPresenceBelowConfirmed(t *testing.T) {
	r := testRoster(t)
	n, err := r.AddFriend(friend.Address{PublicKey: pk(2), Nospam: [4]byte{1, 2, 3, 4}}, []byte("hello there"))
	require.NoError(t, err)

	f := r.Get(n)
	f.Nickname = "should not persist meaningfully"

	blob, err := Serialize(r, SelfState{})
	require.NoError(t, err)

	r2 := testRoster(t)
	_, err = Deserialize(blob, r2)
	require.NoError(t, err)

	restored := r2.Get(n)
	require.NotNil(t, restored)
	require.Equal(t, friend.StatusAdded, restored.Status)
	require.Empty(t, restored.Nickname)
	require.Equal(t, []byte("hello there"), restored.RequestPayload)
	require.Equal(t, [4]byte{1, 2, 3, 4}, restored.RequestNospam)
}

func TestSerializeDeserializeMultiDeviceFriend(t *testing.T) {
	r := testRoster(t)
	n, err := r.AddFriendNoRequest(pk(3))
	require.NoError(t, err)
	require.NoError(t, r.AddDevice(n, pk(4), friend.DeviceConfirmed))

	blob, err := Serialize(r, SelfState{})
	require.NoError(t, err)

	r2 := testRoster(t)
	_, err = Deserialize(blob, r2)
	require.NoError(t, err)

	restored := r2.Get(n)
	require.NotNil(t, restored)
	require.Len(t, restored.Devices, 2)
	require.Equal(t, pk(3), restored.Devices[0].PublicKey)
	require.Equal(t, pk(4), restored.Devices[1].PublicKey)
}

func TestSerializeRejectsTooManyRelays(t *testing.T) {
	r := testRoster(t)
	relays := make([]RelayNode, MaxTCPRelays+1)
	_, err := Serialize(r, SelfState{Relays: relays})
	require.ErrorIs(t, err, ErrTooManyRelays)
}

func TestRelayRoundTrip(t *testing.T) {
	r := testRoster(t)
	relays := []RelayNode{
		{PublicKey: pk(9), IP: []byte{127, 0, 0, 1}, Port: 33445},
	}
	blob, err := Serialize(r, SelfState{Relays: relays})
	require.NoError(t, err)

	r2 := testRoster(t)
	self, err := Deserialize(blob, r2)
	require.NoError(t, err)
	require.Len(t, self.Relays, 1)
	require.Equal(t, pk(9), self.Relays[0].PublicKey)
	require.Equal(t, uint16(33445), self.Relays[0].Port)
}

func TestDeserializeRejectsUnknownFriendsVersion(t *testing.T) {
	r := testRoster(t)
	var buf bytes.Buffer
	writeSection(&buf, SectionFriends, []byte{0x02})

	_, err := Deserialize(buf.Bytes(), r)
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func TestDeserializeTruncatedSectionHeader(t *testing.T) {
	r := testRoster(t)
	_, err := Deserialize([]byte{0x00, 0x01, 0x00}, r)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestOldFriendsSectionLoadsAsLegacy(t *testing.T) {
	r := testRoster(t)
	n, err := r.AddFriendNoRequest(pk(5))
	require.NoError(t, err)
	f := r.Get(n)
	f.Nickname = "legacy"
	f.StatusMessage = "from before"
	f.UserStatus = friend.UserStatusBusy

	var full bytes.Buffer
	encodeFriend(&full, f)
	legacy := full.Bytes()[:oldFriendRecordSize]

	var blobBuf bytes.Buffer
	writeSection(&blobBuf, SectionOldFriends, legacy)
	blob := blobBuf.Bytes()

	r2 := testRoster(t)
	_, err = Deserialize(blob, r2)
	require.NoError(t, err)
	restored := r2.Get(n)
	require.NotNil(t, restored)
	require.Equal(t, friend.StatusConfirmed, restored.Status)
	require.Equal(t, "legacy", restored.Nickname)
	require.Len(t, restored.Devices, 1)
}
