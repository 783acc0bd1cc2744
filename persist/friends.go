package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/nyxmesh/messenger/friend"
)

// Field widths for the FRIENDS v1 record, carried over from the original's
// SAVED_FRIEND struct (status/info/name/statusmessage/userstatus/nospam/
// last_seen_time) and supplemented with a device list so a multi-device
// friend round-trips without losing any device key, per spec.md §6.
const (
	infoFieldSize          = 1024
	nameFieldSize          = friend.MaxNameLength
	statusMessageFieldSize = friend.MaxStatusMessageLength

	// friendRecordFixedSize is everything before the per-device tail:
	// status(1) + primary_pk(32) + info(1024) + info_size(2) + name(128) +
	// name_length(2) + statusmessage(1007) + statusmessage_length(2) +
	// userstatus(1) + nospam(4) + last_seen_time(8) + dev_count(1).
	friendRecordFixedSize = 1 + 32 + infoFieldSize + 2 + nameFieldSize + 2 + statusMessageFieldSize + 2 + 1 + 4 + 8 + 1

	// deviceRecordSize is {device_status:u8, public_key[32]}.
	deviceRecordSize = 1 + 32

	// oldFriendRecordSize is the legacy single-device layout: the v1 fixed
	// part minus the trailing dev_count byte, plus one implicit device that
	// is not itself serialized (the primary_pk field IS that device).
	oldFriendRecordSize = friendRecordFixedSize - 1
)

// encodeFriend appends one FRIENDS v1 record for f to buf.
func encodeFriend(buf *bytes.Buffer, f *friend.Friend) {
	rec := make([]byte, friendRecordFixedSize)
	rec[0] = byte(f.Status)
	primaryPK := f.PrimaryPublicKey()
	copy(rec[1:33], primaryPK[:])

	infoSize := fixedString(rec[33:33+infoFieldSize], string(f.RequestPayload))
	binary.BigEndian.PutUint16(rec[33+infoFieldSize:35+infoFieldSize], infoSize)

	nameOff := 35 + infoFieldSize
	nameLen := fixedString(rec[nameOff:nameOff+nameFieldSize], f.Nickname)
	binary.BigEndian.PutUint16(rec[nameOff+nameFieldSize:nameOff+nameFieldSize+2], nameLen)

	smOff := nameOff + nameFieldSize + 2
	smLen := fixedString(rec[smOff:smOff+statusMessageFieldSize], f.StatusMessage)
	binary.BigEndian.PutUint16(rec[smOff+statusMessageFieldSize:smOff+statusMessageFieldSize+2], smLen)

	tailOff := smOff + statusMessageFieldSize + 2
	rec[tailOff] = byte(f.UserStatus)
	copy(rec[tailOff+1:tailOff+5], f.RequestNospam[:])
	binary.BigEndian.PutUint64(rec[tailOff+5:tailOff+13], uint64(f.LastSeen.Unix()))
	rec[tailOff+13] = byte(len(f.Devices))

	buf.Write(rec)
	for _, d := range f.Devices {
		var drec [deviceRecordSize]byte
		drec[0] = byte(d.Status)
		copy(drec[1:], d.PublicKey[:])
		buf.Write(drec[:])
	}
}

// decodedFriend is the information recovered from one FRIENDS record,
// sufficient to replay either add_friend or add_friend_norequest per
// spec.md §9's load-time status branch.
type decodedFriend struct {
	status        friend.Status
	primaryPK     [32]byte
	requestInfo   []byte
	name          string
	statusMessage string
	userStatus    friend.UserStatus
	nospam        [4]byte
	lastSeen      time.Time
	devices       []decodedDevice
}

type decodedDevice struct {
	status friend.DeviceStatus
	pk     [32]byte
}

// decodeFriend reads one FRIENDS v1 record from raw, returning the record
// and the number of bytes consumed.
func decodeFriend(raw []byte) (decodedFriend, int, error) {
	if len(raw) < friendRecordFixedSize {
		return decodedFriend{}, 0, errShortSection("FRIENDS record", friendRecordFixedSize, len(raw))
	}
	var out decodedFriend
	out.status = friend.Status(raw[0])
	copy(out.primaryPK[:], raw[1:33])

	infoSize := binary.BigEndian.Uint16(raw[33+infoFieldSize : 35+infoFieldSize])
	out.requestInfo = append([]byte(nil), raw[33:33+int(infoSize)]...)

	nameOff := 35 + infoFieldSize
	nameLen := binary.BigEndian.Uint16(raw[nameOff+nameFieldSize : nameOff+nameFieldSize+2])
	out.name = string(raw[nameOff : nameOff+int(nameLen)])

	smOff := nameOff + nameFieldSize + 2
	smLen := binary.BigEndian.Uint16(raw[smOff+statusMessageFieldSize : smOff+statusMessageFieldSize+2])
	out.statusMessage = string(raw[smOff : smOff+int(smLen)])

	tailOff := smOff + statusMessageFieldSize + 2
	out.userStatus = friend.UserStatus(raw[tailOff])
	copy(out.nospam[:], raw[tailOff+1:tailOff+5])
	out.lastSeen = time.Unix(int64(binary.BigEndian.Uint64(raw[tailOff+5:tailOff+13])), 0).UTC()
	devCount := int(raw[tailOff+13])

	consumed := friendRecordFixedSize
	if len(raw) < consumed+devCount*deviceRecordSize {
		return decodedFriend{}, 0, errShortSection("FRIENDS device list", devCount*deviceRecordSize, len(raw)-consumed)
	}
	for i := 0; i < devCount; i++ {
		drec := raw[consumed+i*deviceRecordSize : consumed+(i+1)*deviceRecordSize]
		out.devices = append(out.devices, decodedDevice{status: friend.DeviceStatus(drec[0]), pk: [32]byte(drec[1:33])})
	}
	consumed += devCount * deviceRecordSize

	return out, consumed, nil
}

// decodeOldFriend reads one legacy OLDFRIENDS record: the same fixed
// fields as v1 but with no dev_count/device tail, always exactly one
// device at the primary key, per spec.md §6.4's OLDFRIENDS loader-only
// path.
func decodeOldFriend(raw []byte) (decodedFriend, int, error) {
	if len(raw) < oldFriendRecordSize {
		return decodedFriend{}, 0, errShortSection("OLDFRIENDS record", oldFriendRecordSize, len(raw))
	}
	out, _, err := decodeFriend(append(raw[:oldFriendRecordSize:oldFriendRecordSize], 0))
	if err != nil {
		return decodedFriend{}, 0, err
	}
	out.devices = []decodedDevice{{status: friend.DeviceConfirmed, pk: out.primaryPK}}
	if out.status > friend.StatusConfirmed {
		out.status = friend.StatusConfirmed
	}
	return out, oldFriendRecordSize, nil
}

// friendsSectionVersion is the only version this module writes. It is
// checked on load so a future incompatible record layout fails loudly
// instead of being misparsed as v1.
const friendsSectionVersion = 1

func encodeFriendsSection(r *friend.Roster) []byte {
	var buf bytes.Buffer
	buf.WriteByte(friendsSectionVersion)
	for _, n := range r.All() {
		encodeFriend(&buf, r.Get(n))
	}
	return buf.Bytes()
}

func decodeFriendsSection(data []byte) ([]decodedFriend, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("FRIENDS: %w", ErrTruncated)
	}
	version, data := data[0], data[1:]
	if version != friendsSectionVersion {
		return nil, fmt.Errorf("FRIENDS: version %d: %w", version, ErrUnknownVersion)
	}
	var out []decodedFriend
	for len(data) > 0 {
		df, n, err := decodeFriend(data)
		if err != nil {
			return nil, fmt.Errorf("FRIENDS: %w", err)
		}
		out = append(out, df)
		data = data[n:]
	}
	return out, nil
}

func decodeOldFriendsSection(data []byte) ([]decodedFriend, error) {
	var out []decodedFriend
	for len(data) > 0 {
		df, n, err := decodeOldFriend(data)
		if err != nil {
			return nil, fmt.Errorf("OLDFRIENDS: %w", err)
		}
		out = append(out, df)
		data = data[n:]
	}
	return out, nil
}

// applyDecodedFriend replays a decoded record into r, choosing
// add_friend_norequest for records already Confirmed or beyond and
// add_friend (with a reconstructed request) otherwise, per spec.md §9's
// resolution of the load-time status branch. Secondary devices are
// attached with AddDevice after the primary insert. Presence fields
// (name/status message/user status) are written unconditionally on load
// except when status < Confirmed, matching the same Open Question
// resolution applied on save.
func applyDecodedFriend(r *friend.Roster, df decodedFriend) error {
	var n uint32
	var err error
	if df.status >= friend.StatusConfirmed {
		n, err = r.AddFriendNoRequest(df.primaryPK)
	} else {
		addr := friend.Address{PublicKey: df.primaryPK, Nospam: df.nospam}
		payload := df.requestInfo
		if len(payload) == 0 {
			payload = []byte{0}
		}
		n, err = r.AddFriend(addr, payload)
	}
	if err != nil && !friend.IsSemiSuccess(err) {
		return fmt.Errorf("persist: restoring friend %x: %w", df.primaryPK, err)
	}

	f := r.Get(n)
	if f == nil {
		return fmt.Errorf("persist: restored friend %x vanished", df.primaryPK)
	}
	if len(df.devices) > 1 {
		for _, dd := range df.devices[1:] {
			if err := r.AddDevice(n, dd.pk, dd.status); err != nil {
				return fmt.Errorf("persist: restoring device %x for friend %x: %w", dd.pk, df.primaryPK, err)
			}
		}
	}

	if df.status >= friend.StatusConfirmed {
		f.Nickname = df.name
		f.StatusMessage = df.statusMessage
		f.UserStatus = df.userStatus
	}
	f.LastSeen = df.lastSeen
	return nil
}
