package messenger

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nyxmesh/messenger/dispatch"
	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/metrics"
	"github.com/nyxmesh/messenger/request"
	"github.com/nyxmesh/messenger/transport"
	"github.com/nyxmesh/messenger/wire"
)

// Callbacks bundles the application upcalls, one field per callback.
// There is no core-connection-change callback. Custom lossless and lossy
// packet handlers are not fields here; they are installed through the
// Dispatcher's Register* methods. FriendRequest is delivered separately,
// through request.Inbox.Deliver, since it needs to run before a friend
// record exists at all.
type Callbacks struct {
	FriendRequest          func(senderPK [32]byte, payload []byte)
	FriendMessage          func(friendNumber uint32, action bool, text string)
	NameChange             func(friendNumber uint32, name string)
	StatusMessageChange    func(friendNumber uint32, message string)
	UserStatusChange       func(friendNumber uint32, status friend.UserStatus)
	TypingChange           func(friendNumber uint32, typing bool)
	ReadReceipt            func(friendNumber uint32, messageID uint32)
	ConnectionStatusChange func(friendNumber uint32, kind transport.ConnKind)
	FileSendRequest        func(friendNumber uint32, fileNumber uint32, kind uint32, size uint64, name string)
	FileControl            func(friendNumber uint32, fileNumber uint32, op wire.FileControlOp)
	FileData               func(friendNumber uint32, fileNumber uint32, position uint64, data []byte)
	FileReqChunk           func(friendNumber uint32, fileNumber uint32, position uint64, length int)
	MsiPacket              func(friendNumber uint32, data []byte)
}

// Messenger is the top-level handle for one local identity, per spec.md
// §3's self identity and §4's component wiring.
type Messenger struct {
	mu sync.Mutex // guards the fields statusapi reads cross-goroutine; see doc.go

	Roster     *friend.Roster
	Dispatcher *dispatch.Dispatcher
	Inbox      *request.Inbox
	Transport  transport.Transport
	Metrics    *metrics.Metrics
	Callbacks  Callbacks

	selfPublicKey     [32]byte
	Nospam            [4]byte
	SelfName          string
	SelfStatusMessage string
	SelfUserStatus    friend.UserStatus

	tickID uint64
}

// New constructs a Messenger bound to the given local identity and
// transport. The transport's lossless/lossy callback slots are claimed
// here; callers must not register their own.
func New(selfPublicKey [32]byte, t transport.Transport, m *metrics.Metrics) *Messenger {
	roster := friend.NewRoster(selfPublicKey, t)
	d := dispatch.New(roster)
	msn := &Messenger{
		Roster:        roster,
		Dispatcher:    d,
		Inbox:         request.NewInbox(roster),
		Transport:     t,
		Metrics:       m,
		selfPublicKey: selfPublicKey,
	}

	t.OnLosslessPacket(func(friendNumber uint32, deviceIndex int, data []byte) {
		d.Dispatch(friendNumber, deviceIndex, data)
	})
	t.OnLossyPacket(func(friendNumber uint32, deviceIndex int, data []byte) {
		d.DispatchLossy(friendNumber, deviceIndex, data)
	})
	t.OnStatusChange(func(friendNumber uint32, deviceIndex int, status transport.ConnStatus) {
		msn.onStatusChange(friendNumber, deviceIndex, status)
	})

	msn.Inbox.Deliver = func(senderPK [32]byte, payload []byte) {
		if msn.Callbacks.FriendRequest != nil {
			msn.Callbacks.FriendRequest(senderPK, payload)
		}
	}
	d.OnMsi = func(friendNumber uint32, data []byte) {
		if msn.Callbacks.MsiPacket != nil {
			msn.Callbacks.MsiPacket(friendNumber, data)
		}
	}
	d.OnConnect = func(friendNumber uint32, online bool) {
		if msn.Callbacks.ConnectionStatusChange == nil {
			return
		}
		kind := transport.KindNone
		if online {
			kind = msn.Roster.ConnectionStatus(friendNumber)
		}
		msn.Callbacks.ConnectionStatusChange(friendNumber, kind)
	}
	d.OnMessage = func(friendNumber uint32, action bool, text string) {
		if msn.Callbacks.FriendMessage != nil {
			msn.Callbacks.FriendMessage(friendNumber, action, text)
		}
	}
	d.OnName = func(friendNumber uint32, name string) {
		if msn.Callbacks.NameChange != nil {
			msn.Callbacks.NameChange(friendNumber, name)
		}
	}
	d.OnStatusMessage = func(friendNumber uint32, message string) {
		if msn.Callbacks.StatusMessageChange != nil {
			msn.Callbacks.StatusMessageChange(friendNumber, message)
		}
	}
	d.OnUserStatus = func(friendNumber uint32, status friend.UserStatus) {
		if msn.Callbacks.UserStatusChange != nil {
			msn.Callbacks.UserStatusChange(friendNumber, status)
		}
	}
	d.OnTyping = func(friendNumber uint32, typing bool) {
		if msn.Callbacks.TypingChange != nil {
			msn.Callbacks.TypingChange(friendNumber, typing)
		}
	}
	d.OnFileRecvReq = func(friendNumber, fileNumber, kind uint32, size uint64, name string) {
		logrus.WithFields(logrus.Fields{
			"func": "Messenger.New/OnFileRecvReq", "friend": friendNumber, "file": fileNumber, "size": size,
		}).Debug("inbound file offer")
		if msn.Callbacks.FileSendRequest != nil {
			msn.Callbacks.FileSendRequest(friendNumber, fileNumber, kind, size, name)
		}
	}
	d.OnFileControl = func(friendNumber uint32, fileNumber uint32, op wire.FileControlOp) {
		if msn.Callbacks.FileControl != nil {
			msn.Callbacks.FileControl(friendNumber, fileNumber, op)
		}
	}
	d.OnDrop = func(reason string) {
		if msn.Metrics != nil {
			msn.Metrics.DispatchDropped.Inc()
		}
		logrus.WithFields(logrus.Fields{"func": "Messenger.New/OnDrop", "reason": reason}).Debug("dispatch dropped packet")
	}
	d.OnFileRecvChunk = func(friendNumber, fileNumber uint32, position uint64, data []byte) {
		if msn.Metrics != nil {
			msn.Metrics.FileBytesReceived.Add(float64(len(data)))
		}
		if msn.Callbacks.FileData != nil {
			msn.Callbacks.FileData(friendNumber, fileNumber, position, data)
		}
	}
	return msn
}

// SelfPublicKey returns the local long-term public key, owned by the
// transport per spec.md §3 but cached here for address construction.
func (m *Messenger) SelfPublicKey() [32]byte { return m.selfPublicKey }

// Address returns the 38-byte address this identity publishes so others
// can AddFriend it.
func (m *Messenger) Address() friend.Address {
	return friend.Address{PublicKey: m.selfPublicKey, Nospam: m.Nospam}
}

// SetName validates and sets the self nickname, per spec.md §4.7,
// marking every Online friend's SentName flag false so the next tick
// republishes it.
func (m *Messenger) SetName(name string) error {
	if len(name) > friend.MaxNameLength {
		return ErrNameTooLong
	}
	m.mu.Lock()
	m.SelfName = name
	m.mu.Unlock()
	for _, n := range m.Roster.All() {
		if f := m.Roster.Get(n); f.Status == friend.StatusOnline {
			f.SentName = false
		}
	}
	return nil
}

// SetStatusMessage validates and sets the self status message, per
// spec.md §4.7.
func (m *Messenger) SetStatusMessage(msg string) error {
	if len(msg) > friend.MaxStatusMessageLength {
		return ErrStatusTooLong
	}
	m.mu.Lock()
	m.SelfStatusMessage = msg
	m.mu.Unlock()
	for _, n := range m.Roster.All() {
		if f := m.Roster.Get(n); f.Status == friend.StatusOnline {
			f.SentStatusMessage = false
		}
	}
	return nil
}

// SetUserStatus sets the self presence enum, per spec.md §4.7.
func (m *Messenger) SetUserStatus(status friend.UserStatus) {
	m.mu.Lock()
	m.SelfUserStatus = status
	m.mu.Unlock()
	for _, n := range m.Roster.All() {
		if f := m.Roster.Get(n); f.Status == friend.StatusOnline {
			f.SentUserStatus = false
		}
	}
}

func (m *Messenger) onStatusChange(friendNumber uint32, deviceIndex int, status transport.ConnStatus) {
	f := m.Roster.Get(friendNumber)
	if f == nil || deviceIndex < 0 || deviceIndex >= len(f.Devices) {
		return
	}
	if status == transport.StatusNotConnected {
		f.Devices[deviceIndex].Status = friend.DeviceConfirmed
		if !f.IsOnline() && f.Status == friend.StatusOnline {
			f.GoOffline()
			if m.Callbacks.ConnectionStatusChange != nil {
				m.Callbacks.ConnectionStatusChange(friendNumber, transport.KindNone)
			}
		}
	}
}

// AddFriend implements spec.md §4.1's add_friend over an externally
// parsed Address.
func (m *Messenger) AddFriend(address friend.Address, payload []byte) (uint32, error) {
	return m.Roster.AddFriend(address, payload)
}

// AddFriendFromAddressBytes parses and validates a 38-byte public address
// before delegating to AddFriend.
func (m *Messenger) AddFriendFromAddressBytes(raw []byte, payload []byte) (uint32, error) {
	addr, err := friend.ParseAddress(raw)
	if err != nil {
		return 0, err
	}
	return m.AddFriend(addr, payload)
}

// AddFriendNoRequest implements spec.md §4.1's add_friend_norequest.
func (m *Messenger) AddFriendNoRequest(pk [32]byte) (uint32, error) {
	return m.Roster.AddFriendNoRequest(pk)
}

// DeleteFriend implements spec.md §4.1's delete_friend.
func (m *Messenger) DeleteFriend(n uint32) error {
	return m.Roster.DeleteFriend(n)
}

// SendMessage implements spec.md §4.2's "Outbound encoding" for
// send_message: frames as {Message|Action, payload}, fans out to every
// Online device, and enqueues a receipt keyed off the most recently
// observed successful send to an Online device — spec.md §9's "stricter
// implementation", refreshed on failover rather than reusing a single
// stale device's packet number.
func (m *Messenger) SendMessage(friendNumber uint32, action bool, text string) (uint32, error) {
	f := m.Roster.Get(friendNumber)
	if f == nil {
		return 0, friend.ErrInvalidFriend
	}
	if f.Status != friend.StatusOnline {
		return 0, ErrNotOnline
	}
	payload, err := wire.MarshalText(text)
	if err != nil {
		return 0, err
	}
	id := wire.PacketMessage
	if action {
		id = wire.PacketAction
	}
	raw := wire.Frame(id, payload)

	var lastPN uint32
	sent := false
	for _, d := range f.Devices {
		if d.Status != friend.DeviceOnline {
			continue
		}
		pn, err := d.Conn.SendReliable(raw)
		if err != nil {
			continue
		}
		lastPN = pn
		sent = true
	}
	if !sent {
		return 0, ErrSendFailed
	}

	messageID := f.NextID()
	f.Receipts.Push(lastPN, messageID)
	return messageID, nil
}

// FileSend implements spec.md §4.3's new_filesender: allocates an
// outgoing slot and returns its API-facing file_number.
func (m *Messenger) FileSend(friendNumber uint32, fileType uint32, size uint64, name string) (uint32, error) {
	f := m.Roster.Get(friendNumber)
	if f == nil {
		return 0, friend.ErrInvalidFriend
	}
	if f.Status != friend.StatusOnline {
		return 0, ErrNotOnline
	}
	var id [32]byte
	idBytes, err := uuid.New().MarshalBinary()
	if err == nil {
		copy(id[:], idBytes)
	}
	slot, err := f.FileSending.NewOutgoing(id, fileType, size, name)
	if err != nil {
		return 0, err
	}
	req := wire.FileSendRequest{Slot: byte(slot), FileType: fileType, Size: size, FileID: id, Name: name}
	payload, err := wire.MarshalFileSendRequest(req)
	if err != nil {
		f.FileSending.Free(slot)
		return 0, err
	}
	if err := m.sendToOnlineDevice(f, wire.Frame(wire.PacketFileSendRequest, payload)); err != nil {
		f.FileSending.Free(slot)
		return 0, err
	}
	return file.FileNumber(file.DirectionOutgoing, slot), nil
}

// FileControl implements spec.md §4.3's control operations from the
// local side: applies the state transition locally and forwards the
// control packet to the friend.
func (m *Messenger) FileControl(friendNumber uint32, fileNumber uint32, op wire.FileControlOp, extra []byte) error {
	f := m.Roster.Get(friendNumber)
	if f == nil {
		return friend.ErrInvalidFriend
	}
	dir, slot := file.SplitFileNumber(fileNumber)
	var set *file.SlotSet
	var wireDir wire.FileControlDirection
	if dir == file.DirectionOutgoing {
		set = f.FileSending
		wireDir = wire.DirectionSending // we, the packet sender, are sending this file
	} else {
		set = f.FileReceiving
		wireDir = wire.DirectionReceiving // we, the packet sender, are receiving this file
	}
	isSenderSide := dir == file.DirectionOutgoing

	// Seek always repositions the caller's own slot directly: it is
	// normally issued by a file's receiver, resuming at a known offset
	// before accepting, which is not a "sender" action and must not go
	// through HandleControl's isSender gate (that gate exists for the
	// inbound-packet path in dispatch, where Seek only ever legitimately
	// targets the actual file sender's slot).
	if op == wire.FileControlSeek {
		if dir == file.DirectionOutgoing {
			return file.ErrBadState
		}
		position, err := wire.UnmarshalSeekPosition(extra)
		if err != nil {
			return err
		}
		if err := file.Seek(set, slot, position); err != nil {
			return err
		}
	} else if err := file.HandleControl(set, slot, op, extra, isSenderSide); err != nil {
		return err
	}

	payload := wire.MarshalFileControl(wire.FileControl{Direction: wireDir, Slot: byte(slot), Op: op, Extra: extra})
	return m.sendToOnlineDevice(f, wire.Frame(wire.PacketFileControl, payload))
}

// FileData implements spec.md §4.3's chunk-delivery call: the
// application's response to a FileReqChunk upcall.
func (m *Messenger) FileData(friendNumber uint32, fileNumber uint32, position uint64, data []byte) error {
	f := m.Roster.Get(friendNumber)
	if f == nil {
		return friend.ErrInvalidFriend
	}
	dir, slot := file.SplitFileNumber(fileNumber)
	if dir != file.DirectionOutgoing {
		return file.ErrInvalidFileNumber
	}
	send := func(payload []byte) (uint32, error) {
		for _, d := range f.Devices {
			if d.Status == friend.DeviceOnline {
				return d.Conn.SendReliable(wire.Frame(wire.PacketFileData, payload))
			}
		}
		return 0, ErrNotOnline
	}
	freeSlots := 0
	for _, d := range f.Devices {
		if d.Status == friend.DeviceOnline {
			freeSlots = d.Conn.FreeSendSlots()
			break
		}
	}
	_, err := file.SendChunk(f.FileSending, slot, position, data, freeSlots, send, wire.MarshalFileData)
	if err == nil && m.Metrics != nil {
		m.Metrics.FileBytesSent.Add(float64(len(data)))
	}
	return err
}

func (m *Messenger) sendToOnlineDevice(f *friend.Friend, raw []byte) error {
	for _, d := range f.Devices {
		if d.Status == friend.DeviceOnline {
			if _, err := d.Conn.SendReliable(raw); err == nil {
				return nil
			}
		}
	}
	return ErrSendFailed
}

// nextTickID returns a fresh tickID for log correlation, per SPEC_FULL.md
// §4.6. It is monotonic within a process and carries no protocol meaning.
func (m *Messenger) nextTickID() uint64 {
	m.tickID++
	return m.tickID
}
