package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/transport/memory"
)

func TestRosterAuthorizerRejectsConfirmedFriend(t *testing.T) {
	r := friend.NewRoster([32]byte{0}, memory.New(8))
	_, err := r.AddFriendNoRequest([32]byte{9})
	require.NoError(t, err)

	a := &RosterAuthorizer{Roster: r}
	assert.False(t, a.Allow([32]byte{9}))
	assert.True(t, a.Allow([32]byte{8}))
}

func TestInboxDeliversAllowedRequest(t *testing.T) {
	r := friend.NewRoster([32]byte{0}, memory.New(8))
	inbox := NewInbox(r)
	var gotPK [32]byte
	var gotPayload []byte
	inbox.Deliver = func(pk [32]byte, payload []byte) {
		gotPK, gotPayload = pk, payload
	}

	inbox.Receive([32]byte{5}, []byte("hello"))
	assert.Equal(t, [32]byte{5}, gotPK)
	assert.Equal(t, []byte("hello"), gotPayload)
}

func TestInboxDropsDuplicateRequest(t *testing.T) {
	r := friend.NewRoster([32]byte{0}, memory.New(8))
	_, err := r.AddFriendNoRequest([32]byte{5})
	require.NoError(t, err)
	inbox := NewInbox(r)
	called := false
	inbox.Deliver = func([32]byte, []byte) { called = true }

	inbox.Receive([32]byte{5}, []byte("hello"))
	assert.False(t, called)
}
