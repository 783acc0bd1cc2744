package friend

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxmesh/messenger/transport"
	"github.com/nyxmesh/messenger/wire"
)

// MinRequestPayload and MaxRequestPayload bound a friend-request payload,
// per spec.md §4.1.
const (
	MinRequestPayload = 1
	MaxRequestPayload = 1016
)

// ConnectionKind is an alias of transport.ConnKind, used for spec.md
// §4.1's get_friend_connection_status; transport.KindNone covers the
// "friend not Online at all" case.
type ConnectionKind = transport.ConnKind

// Roster owns every Friend record for one local identity, per spec.md §3
// "Ownership & lifecycle": the Messenger exclusively owns the friend list
// and transitively owns device records and file slots through it.
type Roster struct {
	selfPublicKey [32]byte
	transport     transport.Transport
	friends       []*Friend // index i is friend-number i; nil/StatusNoFriend slots may be reused
}

// NewRoster constructs an empty roster bound to the local identity and
// transport used to seed new friend connections.
func NewRoster(selfPublicKey [32]byte, t transport.Transport) *Roster {
	return &Roster{selfPublicKey: selfPublicKey, transport: t}
}

// NumFriends reports the high-water mark + 1, per spec.md §4.1's index
// allocation rule.
func (r *Roster) NumFriends() int {
	return len(r.friends)
}

// Get returns the friend at n, or nil if n is out of range or the slot is
// NoFriend.
func (r *Roster) Get(n uint32) *Friend {
	if int(n) >= len(r.friends) {
		return nil
	}
	f := r.friends[n]
	if f == nil || f.Status == StatusNoFriend {
		return nil
	}
	return f
}

// All returns every non-NoFriend friend number in ascending order, for the
// lifecycle driver and persistence to iterate.
func (r *Roster) All() []uint32 {
	var out []uint32
	for i, f := range r.friends {
		if f != nil && f.Status != StatusNoFriend {
			out = append(out, uint32(i))
		}
	}
	return out
}

// firstFreeSlot returns the first NoFriend index, reusing deleted slots
// before growing the backing slice, per spec.md §4.1.
func (r *Roster) firstFreeSlot() int {
	for i, f := range r.friends {
		if f == nil || f.Status == StatusNoFriend {
			return i
		}
	}
	return -1
}

// findByKey returns the friend number owning primary public key pk, if
// any.
func (r *Roster) findByKey(pk [32]byte) (uint32, bool) {
	for i, f := range r.friends {
		if f == nil || f.Status == StatusNoFriend {
			continue
		}
		if f.PrimaryPublicKey() == pk {
			return uint32(i), true
		}
	}
	return 0, false
}

// GetFriendByPublicKey resolves a long-term public key to its friend
// number, supplementing spec.md §4.1 with the original's getfriend_id.
func (r *Roster) GetFriendByPublicKey(pk [32]byte) (uint32, bool) {
	return r.findByKey(pk)
}

// GetFriendDeviceIndex resolves a device public key to its owning friend
// number and device index, supplementing spec.md §4.1 with the original's
// getfriend_devid. No other package in this module calls it.
func (r *Roster) GetFriendDeviceIndex(devicePK [32]byte) (uint32, int, bool) {
	for i, f := range r.friends {
		if f == nil || f.Status == StatusNoFriend {
			continue
		}
		for di, d := range f.Devices {
			if d.PublicKey == devicePK {
				return uint32(i), di, true
			}
		}
	}
	return 0, 0, false
}

// insert places f at the first free slot, growing the slice if none is
// free, and returns its friend number.
func (r *Roster) insert(f *Friend) uint32 {
	if idx := r.firstFreeSlot(); idx >= 0 {
		r.friends[idx] = f
		return uint32(idx)
	}
	r.friends = append(r.friends, f)
	return uint32(len(r.friends) - 1)
}

// reserveSlot allocates a NoFriend placeholder at the first free index (or
// grows the slice) and returns it, so the friend number is known before
// the transport connection is opened — Open's callback routing needs the
// real friend number up front.
func (r *Roster) reserveSlot() uint32 {
	return r.insert(&Friend{})
}

// AddFriend implements spec.md §4.1's add_friend: validates the address
// and payload, handles the already-known cases, and otherwise creates a
// new Added friend with a seeded transport connection.
func (r *Roster) AddFriend(address Address, payload []byte) (uint32, error) {
	if address.PublicKey == r.selfPublicKey {
		return 0, ErrOwnKey
	}
	if len(payload) < MinRequestPayload || len(payload) > MaxRequestPayload {
		if len(payload) == 0 {
			return 0, ErrNoMessage
		}
		return 0, ErrTooLong
	}

	if n, ok := r.findByKey(address.PublicKey); ok {
		f := r.friends[n]
		if f.Status >= StatusConfirmed {
			return n, ErrAlreadySent
		}
		if f.RequestNospam != address.Nospam {
			f.RequestNospam = address.Nospam
			return n, ErrSetNewNospam
		}
		return n, ErrAlreadySent
	}

	n := r.reserveSlot()
	conn, err := r.transport.Open(address.PublicKey, n, 0)
	if err != nil {
		r.friends[n] = &Friend{}
		return 0, ErrNoMem
	}

	f := NewFriend()
	f.Status = StatusAdded
	f.RequestPayload = append([]byte(nil), payload...)
	f.RequestNospam = address.Nospam
	f.RequestTimeout = FriendRequestTimeout
	f.Devices = []*Device{{PublicKey: address.PublicKey, Conn: conn, Status: DevicePending}}
	r.friends[n] = f
	logrus.WithFields(logrus.Fields{
		"func": "Roster.AddFriend", "friend": n, "public_key": address.PublicKey[:8],
	}).Info("friend added, request pending")
	return n, nil
}

// AddFriendNoRequest implements spec.md §4.1's add_friend_norequest: same
// key validity checks, but the record starts life Confirmed.
func (r *Roster) AddFriendNoRequest(pk [32]byte) (uint32, error) {
	if pk == r.selfPublicKey {
		return 0, ErrOwnKey
	}
	if n, ok := r.findByKey(pk); ok {
		return n, ErrAlreadySent
	}

	f := NewFriend()
	f.Status = StatusConfirmed

	n := r.insert(f)
	conn, err := r.transport.Open(pk, n, 0)
	if err != nil {
		r.friends[n] = &Friend{}
		return 0, ErrNoMem
	}
	f.Devices = []*Device{{PublicKey: pk, Conn: conn, Status: DeviceConfirmed}}
	logrus.WithFields(logrus.Fields{
		"func": "Roster.AddFriendNoRequest", "friend": n, "public_key": pk[:8],
	}).Info("friend added without request")
	return n, nil
}

// AddDevice attaches an additional device key to an existing friend,
// supplementing spec.md §3's "device list (1..N)" for multi-device
// friends.
func (r *Roster) AddDevice(n uint32, pk [32]byte, status DeviceStatus) error {
	f := r.Get(n)
	if f == nil {
		return ErrInvalidFriend
	}
	conn, err := r.transport.Open(pk, n, len(f.Devices))
	if err != nil {
		return ErrNoMem
	}
	f.Devices = append(f.Devices, &Device{PublicKey: pk, Conn: conn, Status: status})
	return nil
}

// DeleteFriend implements spec.md §4.1's delete_friend: flushes receipts,
// sends Offline if connected, releases every device's transport handle,
// and zeros the slot.
func (r *Roster) DeleteFriend(n uint32) error {
	f := r.Get(n)
	if f == nil {
		return ErrInvalidFriend
	}
	if f.IsOnline() {
		for _, d := range f.onlineDevices() {
			_, _ = d.Conn.SendReliable([]byte{byte(wire.PacketOffline)})
		}
	}
	f.Receipts.DiscardAll()
	f.FileSending.DiscardAll()
	f.FileReceiving.DiscardAll()
	for _, d := range f.Devices {
		_ = d.Conn.Close()
	}
	r.friends[n] = &Friend{}
	r.trimTail()
	logrus.WithField("func", "Roster.DeleteFriend").WithField("friend", n).Info("friend deleted")
	return nil
}

// trimTail drops trailing NoFriend slots so NumFriends reflects the
// highest non-None index + 1, per spec.md §4.1.
func (r *Roster) trimTail() {
	for len(r.friends) > 0 {
		last := r.friends[len(r.friends)-1]
		if last != nil && last.Status != StatusNoFriend {
			break
		}
		r.friends = r.friends[:len(r.friends)-1]
	}
}

// ConnectionStatus implements spec.md §4.1's get_friend_connection_status:
// None if not Online, otherwise the debounced kind of whichever device is
// reporting the "best" currently-known connection.
func (r *Roster) ConnectionStatus(n uint32) transport.ConnKind {
	f := r.Get(n)
	if f == nil || !f.IsOnline() {
		return transport.KindNone
	}
	best := transport.KindNone
	for _, d := range f.onlineDevices() {
		observed := d.Conn.Kind()
		kind := d.connKindDebounced(observed)
		if kind > best {
			best = kind
		}
	}
	f.LastConnKind = best
	return best
}

// advanceRequest implements spec.md §4.6 steps 1-2 for one friend: sends
// the queued request while Added, or times it out while Requested. send
// must deliver the friend-request payload through the request subsystem
// and report whether it was accepted for send.
func (f *Friend) advanceRequest(now time.Time, send func(nospam [4]byte, payload []byte) bool) {
	switch f.Status {
	case StatusAdded:
		if send(f.RequestNospam, f.RequestPayload) {
			f.Status = StatusRequested
			f.RequestLastSent = now
		}
	case StatusRequested:
		if now.Sub(f.RequestLastSent) > f.RequestTimeout {
			f.Status = StatusAdded
			f.RequestTimeout *= 2
		}
	}
}
