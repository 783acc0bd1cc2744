package messenger

import (
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/transport"
)

// FriendSnapshot is a read-only copy of one roster entry's externally
// interesting fields, safe to hand across goroutine boundaries (it owns no
// pointers back into the live Friend record).
type FriendSnapshot struct {
	FriendNumber        uint32
	Status              friend.Status
	PublicKey           [32]byte
	Nickname            string
	StatusMessage       string
	UserStatus          friend.UserStatus
	ConnectionKind      transport.ConnKind
	DeviceCount         int
	OutstandingReceipts int
}

// SelfSnapshot is a read-only copy of the local identity's presence
// fields.
type SelfSnapshot struct {
	PublicKey     [32]byte
	Name          string
	StatusMessage string
	UserStatus    friend.UserStatus
	FriendCount   int
}

// Snapshot returns the self identity fields under lock, for statusapi's
// read-only introspection surface — the one documented exception to this
// module's otherwise lock-free core (see doc.go).
func (m *Messenger) Snapshot() SelfSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SelfSnapshot{
		PublicKey:     m.selfPublicKey,
		Name:          m.SelfName,
		StatusMessage: m.SelfStatusMessage,
		UserStatus:    m.SelfUserStatus,
		FriendCount:   m.Roster.NumFriends(),
	}
}

// Friends returns a snapshot of every roster entry, in friend-number
// order.
func (m *Messenger) Friends() []FriendSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FriendSnapshot, 0, m.Roster.NumFriends())
	for _, n := range m.Roster.All() {
		f := m.Roster.Get(n)
		if f == nil {
			continue
		}
		out = append(out, FriendSnapshot{
			FriendNumber:        n,
			Status:              f.Status,
			PublicKey:           f.PrimaryPublicKey(),
			Nickname:            f.Nickname,
			StatusMessage:       f.StatusMessage,
			UserStatus:          f.UserStatus,
			ConnectionKind:      m.Roster.ConnectionStatus(n),
			DeviceCount:         len(f.Devices),
			OutstandingReceipts: f.Receipts.Len(),
		})
	}
	return out
}

// Friend returns a snapshot of a single roster entry, or false if n does
// not name a current friend.
func (m *Messenger) Friend(n uint32) (FriendSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.Roster.Get(n)
	if f == nil {
		return FriendSnapshot{}, false
	}
	return FriendSnapshot{
		FriendNumber:        n,
		Status:              f.Status,
		PublicKey:           f.PrimaryPublicKey(),
		Nickname:            f.Nickname,
		StatusMessage:       f.StatusMessage,
		UserStatus:          f.UserStatus,
		ConnectionKind:      m.Roster.ConnectionStatus(n),
		DeviceCount:         len(f.Devices),
		OutstandingReceipts: f.Receipts.Len(),
	}, true
}
