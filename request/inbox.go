package request

import "github.com/nyxmesh/messenger/friend"

// Authorizer rejects an inbound friend request before it ever reaches the
// application, per spec.md §6 "Initialize with a filter function the
// Messenger provides (rejects duplicates)".
type Authorizer interface {
	// Allow reports whether a request from senderPK should be surfaced to
	// the application. The roster-backed implementation rejects anything
	// already Confirmed or above.
	Allow(senderPK [32]byte) bool
}

// RosterAuthorizer is the roster-backed Authorizer the messenger wires by
// default: any key already known at StatusConfirmed or above is a
// duplicate and is rejected silently.
type RosterAuthorizer struct {
	Roster *friend.Roster
}

// Allow implements Authorizer.
func (a *RosterAuthorizer) Allow(senderPK [32]byte) bool {
	n, ok := a.Roster.GetFriendByPublicKey(senderPK)
	if !ok {
		return true
	}
	f := a.Roster.Get(n)
	return f == nil || f.Status < friend.StatusConfirmed
}

// DeliverFunc is the application upcall for an accepted inbound request,
// per spec.md §6's friend_request(pk, payload, len).
type DeliverFunc func(senderPK [32]byte, payload []byte)

// Inbox filters inbound friend requests through an Authorizer before
// handing accepted ones to the application.
type Inbox struct {
	Authorizer Authorizer
	Deliver    DeliverFunc
}

// NewInbox constructs an Inbox backed by a RosterAuthorizer over r.
func NewInbox(r *friend.Roster) *Inbox {
	return &Inbox{Authorizer: &RosterAuthorizer{Roster: r}}
}

// Receive applies the Authorizer and, if it passes, invokes Deliver. The
// transport interface has no friend-request listener, so nothing in this
// module feeds inbound requests to it; callers invoke it directly.
func (i *Inbox) Receive(senderPK [32]byte, payload []byte) {
	if i.Authorizer == nil || !i.Authorizer.Allow(senderPK) {
		return
	}
	if i.Deliver != nil {
		i.Deliver(senderPK, payload)
	}
}
