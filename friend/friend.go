package friend

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/receipt"
	"github.com/nyxmesh/messenger/transport"
)

// Status is a friend's roster status, per spec.md §3. It is strictly
// nondecreasing until deletion, except Online<->Confirmed which may
// oscillate as devices connect and drop.
type Status uint8

const (
	StatusNoFriend Status = iota
	StatusAdded
	StatusRequested
	StatusConfirmed
	StatusOnline
)

// DeviceStatus is one device's connection lifecycle within a friend.
type DeviceStatus uint8

const (
	DeviceNone DeviceStatus = iota
	DevicePending
	DeviceConfirmed
	DeviceOnline
)

// UserStatus is the friend's observed presence enum, per spec.md §3.
type UserStatus uint8

const (
	UserStatusNone UserStatus = iota
	UserStatusAway
	UserStatusBusy
)

// MaxNameLength and MaxStatusMessageLength bound the two free-text fields,
// per spec.md §3.
const (
	MaxNameLength          = 128
	MaxStatusMessageLength = 1007
)

// FriendRequestTimeout is the initial request retry interval, doubled on
// each unacknowledged attempt, per spec.md §4.6.
const FriendRequestTimeout = 8 * time.Second

// Device is one connection under a friend identity, per spec.md §3.
type Device struct {
	PublicKey [32]byte
	Conn      transport.Conn
	Status    DeviceStatus

	// lastReportedKind is the debounced connection kind last surfaced to
	// ConnectionStatus, grounded on the original's coalescing logic for
	// m_get_friend_connectionstatus (spec.md §4.5).
	lastReportedKind transport.ConnKind
	lastKindSeen     transport.ConnKind
}

// connKindDebounced folds a freshly observed kind into the device's
// debounced, externally visible kind: a momentary KindUnknown between two
// observations of the same real kind does not flip the reported value,
// per spec.md §4.5.
func (d *Device) connKindDebounced(observed transport.ConnKind) transport.ConnKind {
	if observed == transport.KindUnknown && d.lastReportedKind != transport.KindNone {
		return d.lastReportedKind
	}
	d.lastReportedKind = observed
	return observed
}

// Friend is one roster entry: a remote peer identity, its devices, and all
// per-friend protocol state, per spec.md §3.
type Friend struct {
	Status  Status
	Devices []*Device

	// Friend-request bookkeeping, valid while Status is Added or Requested.
	RequestPayload  []byte
	RequestNospam   [4]byte
	RequestLastSent time.Time
	RequestTimeout  time.Duration

	// Observed presence, refreshed from inbound packets.
	Nickname      string
	StatusMessage string
	UserStatus    UserStatus
	Typing        bool

	// Sent-flags: false means the lifecycle driver must (re)send this
	// field to the friend on the next tick while Online.
	SentName          bool
	SentStatusMessage bool
	SentUserStatus    bool
	SentTyping        bool

	NextMessageID uint32
	Receipts      receipt.Queue

	FileSending   *file.SlotSet
	FileReceiving *file.SlotSet

	LastConnKind transport.ConnKind
	LastSeen     time.Time
}

// NewFriend constructs a Friend record with its file-transfer slot arrays
// allocated, per spec.md §3's "arrays of MAX_CONCURRENT_FILE_PIPES".
func NewFriend() *Friend {
	logrus.WithField("func", "friend.NewFriend").Debug("allocating friend record")
	return &Friend{
		FileSending:   file.NewSlotSet(file.DirectionOutgoing),
		FileReceiving: file.NewSlotSet(file.DirectionIncoming),
	}
}

// PrimaryPublicKey returns the friend's first device key, the one used by
// AddFriend/persistence as the stable roster identity, per spec.md §4.1.
func (f *Friend) PrimaryPublicKey() [32]byte {
	if len(f.Devices) == 0 {
		return [32]byte{}
	}
	return f.Devices[0].PublicKey
}

// IsOnline reports whether any device is Online, the invariant spec.md §3
// defines Status==Online against.
func (f *Friend) IsOnline() bool {
	for _, d := range f.Devices {
		if d.Status == DeviceOnline {
			return true
		}
	}
	return false
}

// onlineDevices returns every device currently Online, in index order.
func (f *Friend) onlineDevices() []*Device {
	var out []*Device
	for _, d := range f.Devices {
		if d.Status == DeviceOnline {
			out = append(out, d)
		}
	}
	return out
}

// GoOnline applies the !Online -> Online transition from spec.md §4.5:
// every sent-flag is cleared so the driver republishes presence on the
// next tick.
func (f *Friend) GoOnline() {
	f.Status = StatusOnline
	f.SentName = false
	f.SentStatusMessage = false
	f.SentUserStatus = false
	f.SentTyping = false
	pk := f.PrimaryPublicKey()
	logrus.WithFields(logrus.Fields{
		"func": "Friend.GoOnline", "public_key": pk[:8],
	}).Debug("friend online, presence flags reset for resend")
}

// GoOffline applies the Online -> !Online transition from spec.md §4.5:
// outstanding file transfers and receipts are discarded without firing
// terminal upcalls.
func (f *Friend) GoOffline() {
	if f.Status == StatusOnline {
		f.Status = StatusConfirmed
	}
	discardedSending := f.FileSending.NumActive()
	discardedReceiving := f.FileReceiving.NumActive()
	discardedReceipts := f.Receipts.Len()
	f.FileSending.DiscardAll()
	f.FileReceiving.DiscardAll()
	f.Receipts.DiscardAll()
	if discardedSending+discardedReceiving+discardedReceipts > 0 {
		pk := f.PrimaryPublicKey()
		logrus.WithFields(logrus.Fields{
			"func": "Friend.GoOffline", "public_key": pk[:8],
			"discarded_sending": discardedSending, "discarded_receiving": discardedReceiving,
			"discarded_receipts": discardedReceipts,
		}).Warn("friend offline, outstanding transfers and receipts discarded")
	}
}

// NextID returns the next outgoing message id and advances the counter,
// per spec.md §4.2 "Outbound encoding".
func (f *Friend) NextID() uint32 {
	id := f.NextMessageID
	f.NextMessageID++
	return id
}

