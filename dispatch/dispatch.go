package dispatch

import (
	"strings"

	"github.com/nyxmesh/messenger/file"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/wire"
)

// ConnectFunc is invoked when a friend transitions !Online -> Online on a
// given device (an Online packet arrived), or Online -> !Online (an
// Offline packet left the friend with no Online device).
type ConnectFunc func(friendNumber uint32, online bool)

// MessageFunc delivers a decoded message or action, already NUL-safe.
type MessageFunc func(friendNumber uint32, action bool, text string)

// NameFunc, StatusMessageFunc, UserStatusFunc, TypingFunc deliver the
// friend's observed presence fields, per spec.md §6 "Application
// (exposed)".
type (
	NameFunc          func(friendNumber uint32, name string)
	StatusMessageFunc func(friendNumber uint32, message string)
	UserStatusFunc    func(friendNumber uint32, status friend.UserStatus)
	TypingFunc        func(friendNumber uint32, typing bool)
)

// FileRecvRequestFunc announces an inbound file offer.
type FileRecvRequestFunc func(friendNumber uint32, fileNumber uint32, kind uint32, size uint64, filename string)

// FileRecvChunkFunc delivers received file bytes; len(data)==0 marks
// end-of-stream.
type FileRecvChunkFunc func(friendNumber uint32, fileNumber uint32, position uint64, data []byte)

// CustomPacketFunc delivers an application-defined lossy/lossless
// payload, per spec.md §4.8.
type CustomPacketFunc func(friendNumber uint32, data []byte)

// Dispatcher demultiplexes inbound per-friend packets by leading byte and
// drives the friend/file/receipt state those packets affect, per spec.md
// §4.2 and §4.3's receive-side rules.
type Dispatcher struct {
	roster *friend.Roster

	OnConnect       ConnectFunc
	OnMessage       MessageFunc
	OnName          NameFunc
	OnStatusMessage StatusMessageFunc
	OnUserStatus    UserStatusFunc
	OnTyping        TypingFunc
	OnFileRecvReq   FileRecvRequestFunc
	OnFileRecvChunk FileRecvChunkFunc
	OnFileControl   func(friendNumber uint32, fileNumber uint32, op wire.FileControlOp)
	OnMsi           CustomPacketFunc

	// OnDrop is invoked when Dispatch/DispatchLossy discards a packet for
	// an unknown friend, a malformed frame, a friend that is not Online,
	// or a lossy id outside LossyRange, for metrics purposes only — it
	// never affects dispatch behavior. Payloads that a per-packet handler
	// fails to decode are dropped without calling it.
	OnDrop func(reason string)

	customLossless CustomPacketFunc
	customLossy    CustomPacketFunc
	friendLossy    map[uint32]CustomPacketFunc
}

// New constructs a Dispatcher bound to the roster it mutates.
func New(r *friend.Roster) *Dispatcher {
	return &Dispatcher{roster: r, friendLossy: make(map[uint32]CustomPacketFunc)}
}

// RegisterCustomLossless installs the single global handler for inbound
// payloads in wire's LosslessRange, per spec.md §4.8.
func (d *Dispatcher) RegisterCustomLossless(fn CustomPacketFunc) { d.customLossless = fn }

// RegisterCustomLossy installs the single global handler for inbound
// payloads in wire's LossyRange.
func (d *Dispatcher) RegisterCustomLossy(fn CustomPacketFunc) { d.customLossy = fn }

// RegisterFriendLossy installs a per-friend lossy handler, overriding the
// global one for that friend only — the one-per-friend RTP case spec.md
// §6 calls out explicitly.
func (d *Dispatcher) RegisterFriendLossy(friendNumber uint32, fn CustomPacketFunc) {
	d.friendLossy[friendNumber] = fn
}

// Dispatch demultiplexes one inbound reliable (lossless-path) packet for
// friendNumber/deviceIndex. It never returns an error to the transport —
// malformed or out-of-state packets are dropped silently per spec.md
// §4.2, matching the original's never-disconnect-on-garbage behavior.
func (d *Dispatcher) Dispatch(friendNumber uint32, deviceIndex int, raw []byte) {
	f := d.roster.Get(friendNumber)
	if f == nil {
		d.drop("unknown friend")
		return
	}
	id, payload, err := wire.ParseFrame(raw)
	if err != nil {
		d.drop("malformed frame")
		return
	}

	if !f.IsOnline() && id != wire.PacketOnline {
		d.drop("not online")
		return
	}

	if id >= wire.LosslessRangeStart && id <= wire.LosslessRangeEnd {
		if d.customLossless != nil {
			d.customLossless(friendNumber, raw)
		}
		return
	}

	switch id {
	case wire.PacketOnline:
		d.handleOnline(f, friendNumber, deviceIndex)
	case wire.PacketOffline:
		d.handleOffline(f, friendNumber, deviceIndex)
	case wire.PacketNickname:
		d.handleNickname(f, friendNumber, payload)
	case wire.PacketStatusMessage:
		d.handleStatusMessage(f, friendNumber, payload)
	case wire.PacketUserStatus:
		d.handleUserStatus(f, friendNumber, payload)
	case wire.PacketTyping:
		d.handleTyping(f, friendNumber, payload)
	case wire.PacketMessage:
		d.handleText(f, friendNumber, false, payload)
	case wire.PacketAction:
		d.handleText(f, friendNumber, true, payload)
	case wire.PacketFileSendRequest:
		d.handleFileSendRequest(f, friendNumber, payload)
	case wire.PacketFileControl:
		d.handleFileControl(f, friendNumber, payload)
	case wire.PacketFileData:
		d.handleFileData(f, friendNumber, payload)
	case wire.PacketMsi:
		if d.OnMsi != nil {
			d.OnMsi(friendNumber, payload)
		}
	default:
		// InviteGroupchat and anything else unrecognized are ignored: no
		// upcall fires and OnDrop is not called.
		return
	}
}

func (d *Dispatcher) drop(reason string) {
	if d.OnDrop != nil {
		d.OnDrop(reason)
	}
}

// DispatchLossy demultiplexes one inbound best-effort packet, routing
// custom application channels per spec.md §4.8.
func (d *Dispatcher) DispatchLossy(friendNumber uint32, deviceIndex int, raw []byte) {
	f := d.roster.Get(friendNumber)
	if f == nil || !f.IsOnline() {
		d.drop("unknown friend or not online")
		return
	}
	id, _, err := wire.ParseFrame(raw)
	if err != nil {
		d.drop("malformed frame")
		return
	}
	if id < wire.LossyRangeStart || id > wire.LossyRangeEnd {
		d.drop("unrecognized lossy id")
		return
	}
	if fn, ok := d.friendLossy[friendNumber]; ok {
		fn(friendNumber, raw)
		return
	}
	if d.customLossy != nil {
		d.customLossy(friendNumber, raw)
	}
}

func (d *Dispatcher) handleOnline(f *friend.Friend, friendNumber uint32, deviceIndex int) {
	if deviceIndex < 0 || deviceIndex >= len(f.Devices) {
		return
	}
	f.Devices[deviceIndex].Status = friend.DeviceOnline
	wasOnline := f.Status == friend.StatusOnline
	f.GoOnline()
	if !wasOnline {
		if conn := f.Devices[deviceIndex].Conn; conn != nil {
			_, _ = conn.SendReliable(wire.Frame(wire.PacketOnline, nil))
		}
		if d.OnConnect != nil {
			d.OnConnect(friendNumber, true)
		}
	}
}

func (d *Dispatcher) handleOffline(f *friend.Friend, friendNumber uint32, deviceIndex int) {
	if deviceIndex >= 0 && deviceIndex < len(f.Devices) {
		f.Devices[deviceIndex].Status = friend.DeviceConfirmed
	}
	if !f.IsOnline() {
		f.GoOffline()
		if d.OnConnect != nil {
			d.OnConnect(friendNumber, false)
		}
	}
}

func (d *Dispatcher) handleNickname(f *friend.Friend, friendNumber uint32, payload []byte) {
	name, err := wire.UnmarshalNickname(payload)
	if err != nil {
		return
	}
	name = nulTerminate(name)
	f.Nickname = name
	if d.OnName != nil {
		d.OnName(friendNumber, name)
	}
}

func (d *Dispatcher) handleStatusMessage(f *friend.Friend, friendNumber uint32, payload []byte) {
	msg, err := wire.UnmarshalStatusMessage(payload)
	if err != nil {
		return
	}
	msg = nulTerminate(msg)
	f.StatusMessage = msg
	if d.OnStatusMessage != nil {
		d.OnStatusMessage(friendNumber, msg)
	}
}

func (d *Dispatcher) handleUserStatus(f *friend.Friend, friendNumber uint32, payload []byte) {
	status, err := wire.UnmarshalUserStatus(payload)
	if err != nil {
		return
	}
	f.UserStatus = friend.UserStatus(status)
	if d.OnUserStatus != nil {
		d.OnUserStatus(friendNumber, f.UserStatus)
	}
}

func (d *Dispatcher) handleTyping(f *friend.Friend, friendNumber uint32, payload []byte) {
	typing, err := wire.UnmarshalTyping(payload)
	if err != nil {
		return
	}
	f.Typing = typing
	if d.OnTyping != nil {
		d.OnTyping(friendNumber, typing)
	}
}

func (d *Dispatcher) handleText(f *friend.Friend, friendNumber uint32, action bool, payload []byte) {
	text, err := wire.UnmarshalText(payload)
	if err != nil {
		return
	}
	text = nulTerminate(text)
	if d.OnMessage != nil {
		d.OnMessage(friendNumber, action, text)
	}
}

func (d *Dispatcher) handleFileSendRequest(f *friend.Friend, friendNumber uint32, payload []byte) {
	req, err := wire.UnmarshalFileSendRequest(payload)
	if err != nil {
		return
	}
	name := nulTerminate(req.Name)
	if err := file.HandleSendRequest(f.FileReceiving, int(req.Slot), req.FileID, req.FileType, req.Size, name); err != nil {
		return
	}
	if d.OnFileRecvReq != nil {
		fileNumber := file.FileNumber(file.DirectionIncoming, int(req.Slot))
		d.OnFileRecvReq(friendNumber, fileNumber, req.FileType, req.Size, name)
	}
}

func (d *Dispatcher) handleFileControl(f *friend.Friend, friendNumber uint32, payload []byte) {
	ctl, err := wire.UnmarshalFileControl(payload)
	if err != nil {
		return
	}
	// The sender's DirectionSending means it is sending that slot, i.e.
	// the control targets *our* receiving array; DirectionReceiving means
	// the sender is receiving it, targeting our sending array.
	var set *file.SlotSet
	var isSenderSide bool
	switch ctl.Direction {
	case wire.DirectionSending:
		set = f.FileReceiving
		isSenderSide = false
	case wire.DirectionReceiving:
		set = f.FileSending
		isSenderSide = true
	default:
		return
	}
	if err := file.HandleControl(set, int(ctl.Slot), ctl.Op, ctl.Extra, isSenderSide); err != nil {
		return
	}
	if d.OnFileControl != nil {
		dir := file.DirectionIncoming
		if isSenderSide {
			dir = file.DirectionOutgoing
		}
		d.OnFileControl(friendNumber, file.FileNumber(dir, int(ctl.Slot)), ctl.Op)
	}
}

func (d *Dispatcher) handleFileData(f *friend.Friend, friendNumber uint32, payload []byte) {
	fd, err := wire.UnmarshalFileData(payload)
	if err != nil {
		return
	}
	err = file.HandleData(f.FileReceiving, int(fd.Slot), fd.Chunk, func(slot int, position uint64, data []byte) {
		if d.OnFileRecvChunk == nil {
			return
		}
		fileNumber := file.FileNumber(file.DirectionIncoming, slot)
		d.OnFileRecvChunk(friendNumber, fileNumber, position, data)
	})
	_ = err
}

// nulTerminate truncates s at its first NUL byte, matching the original's
// m_copy_self_name-family contract: the application reads these buffers
// as C strings, so any embedded NUL must end the string here rather than
// at the upcall boundary.
func nulTerminate(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}
