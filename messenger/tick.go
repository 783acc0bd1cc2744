package messenger

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/wire"
)

// RunInterval is the maximum recommended gap between Tick calls, per
// spec.md §4.6: "at least every min(50ms, transport-requested interval)".
const RunInterval = 50 * time.Millisecond

// pendingCallback defers an application upcall until after Tick has
// released m.mu, so a callback that calls back into Snapshot/Friends/
// Friend (spec.md §5's re-entrant-safe state queries) never deadlocks on
// the same goroutine.
type pendingCallback func()

// Tick drives the per-friend lifecycle state machine once, per spec.md
// §4.6: request send/timeout for Added/Requested friends, and for Online
// friends, sent-flag resend, connection-kind debounce, receipt drain, and
// file-chunk drive. Application callbacks are collected while m.mu is
// held and fired only after it is released.
func (m *Messenger) Tick(now time.Time) {
	m.mu.Lock()

	start := time.Now()
	tickID := m.nextTickID()
	var callbacks []pendingCallback

	for _, n := range m.Roster.All() {
		f := m.Roster.Get(n)
		if f == nil {
			continue
		}
		switch f.Status {
		case friend.StatusAdded, friend.StatusRequested:
			m.tickRequest(n, f, now)
		case friend.StatusOnline:
			m.tickOnline(n, f, now, &callbacks)
		}
	}

	if m.Metrics != nil {
		m.Metrics.TickDuration.Observe(time.Since(start).Seconds())
		m.Metrics.FriendsOnline.Set(float64(m.countOnline()))
		m.Metrics.ReceiptsOutstanding.Set(float64(m.countOutstandingReceipts()))
	}
	logrus.WithFields(logrus.Fields{
		"func": "Messenger.Tick", "tick_id": tickID, "friends": m.Roster.NumFriends(),
	}).Debug("tick complete")

	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (m *Messenger) countOutstandingReceipts() int {
	total := 0
	for _, n := range m.Roster.All() {
		if f := m.Roster.Get(n); f != nil {
			total += f.Receipts.Len()
		}
	}
	return total
}

func (m *Messenger) countOnline() int {
	count := 0
	for _, n := range m.Roster.All() {
		if f := m.Roster.Get(n); f.Status == friend.StatusOnline {
			count++
		}
	}
	return count
}

// tickRequest implements spec.md §4.6 steps 1-2: send the friend request
// while Added, or time it out while Requested.
func (m *Messenger) tickRequest(n uint32, f *friend.Friend, now time.Time) {
	switch f.Status {
	case friend.StatusAdded:
		if m.sendFriendRequest(f) {
			f.Status = friend.StatusRequested
			f.RequestLastSent = now
		}
	case friend.StatusRequested:
		if now.Sub(f.RequestLastSent) > f.RequestTimeout {
			f.Status = friend.StatusAdded
			f.RequestTimeout *= 2
			logrus.WithFields(logrus.Fields{
				"func": "Messenger.tickRequest", "friend": n, "timeout": f.RequestTimeout,
			}).Debug("friend request timed out, reverting to Added")
		}
	}
}

// sendFriendRequest hands the pending request payload to the first
// device's connection. The request subsystem itself (spec.md §6) is
// consumed externally; here the transport only carries the bytes: the
// payload is sent as stored, with no packet-ID frame.
func (m *Messenger) sendFriendRequest(f *friend.Friend) bool {
	if len(f.Devices) == 0 {
		return false
	}
	_, err := f.Devices[0].Conn.SendReliable(f.RequestPayload)
	return err == nil
}

// tickOnline implements spec.md §4.6 step 3. Any ReadReceipt/FileReqChunk
// upcalls it would fire are appended to callbacks instead, deferring them
// until Tick has released m.mu.
func (m *Messenger) tickOnline(n uint32, f *friend.Friend, now time.Time, callbacks *[]pendingCallback) {
	m.resendPresence(n, f)
	m.Roster.ConnectionStatus(n) // refreshes the debounced kind cache as a side effect

	delivered := f.Receipts.Drain(func(packetNumber uint32) bool {
		return m.isAckedByAnyDevice(f, packetNumber)
	})
	for _, messageID := range delivered {
		if m.Callbacks.ReadReceipt != nil {
			messageID := messageID
			*callbacks = append(*callbacks, func() { m.Callbacks.ReadReceipt(n, messageID) })
		}
	}

	m.driveFiles(n, f, callbacks)
	f.LastSeen = now
}

func (m *Messenger) isAckedByAnyDevice(f *friend.Friend, packetNumber uint32) bool {
	for _, d := range f.Devices {
		if d.Status != friend.DeviceOnline {
			continue
		}
		if acked, err := d.Conn.IsAcked(packetNumber); err == nil {
			return acked
		}
	}
	return false
}

func (m *Messenger) resendPresence(n uint32, f *friend.Friend) {
	if !f.SentName {
		if m.sendToOnlineDevice(f, wire.Frame(wire.PacketNickname, []byte(m.SelfName))) == nil {
			f.SentName = true
		}
	}
	if !f.SentStatusMessage {
		if m.sendToOnlineDevice(f, wire.Frame(wire.PacketStatusMessage, []byte(m.SelfStatusMessage))) == nil {
			f.SentStatusMessage = true
		}
	}
	if !f.SentUserStatus {
		if m.sendToOnlineDevice(f, wire.Frame(wire.PacketUserStatus, wire.MarshalUserStatus(uint8(m.SelfUserStatus)))) == nil {
			f.SentUserStatus = true
		}
	}
	if !f.SentTyping {
		if m.sendToOnlineDevice(f, wire.Frame(wire.PacketTyping, wire.MarshalTyping(f.Typing))) == nil {
			f.SentTyping = true
		}
	}
}

// driveFiles runs the sender-side chunk-request loop against the send
// budget of the friend's first Online device, per spec.md §4.3's
// chunk-requests driver.
// FileReqChunk upcalls are appended to callbacks rather than fired
// directly; see Tick.
func (m *Messenger) driveFiles(n uint32, f *friend.Friend, callbacks *[]pendingCallback) {
	var budgetConn interface {
		FreeSendSlots() int
		IsCongested() bool
	}
	for _, d := range f.Devices {
		if d.Status == friend.DeviceOnline {
			budgetConn = d.Conn
			break
		}
	}
	if budgetConn == nil {
		return
	}

	isAcked := func(pn uint32) bool { return m.isAckedByAnyDevice(f, pn) }
	send := func(payload []byte) (uint32, error) {
		for _, d := range f.Devices {
			if d.Status == friend.DeviceOnline {
				return d.Conn.SendReliable(wire.Frame(wire.PacketFileData, payload))
			}
		}
		return 0, ErrNotOnline
	}
	file.DriveOutgoing(f.FileSending, budgetConn, isAcked, send, wire.MarshalFileData, func(slot int, position uint64, length int) {
		if m.Callbacks.FileReqChunk != nil {
			fileNumber := file.FileNumber(file.DirectionOutgoing, slot)
			*callbacks = append(*callbacks, func() { m.Callbacks.FileReqChunk(n, fileNumber, position, length) })
		}
	})
}
