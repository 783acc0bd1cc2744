package persist

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/nyxmesh/messenger/friend"
)

// RelayNode is one TCP relay entry carried in the TCP_RELAY section,
// supplemented from the original's DHT_save/daemon packed-node-list
// format: public key, v4-mapped v6 address, and port, per spec.md §6.4.
type RelayNode struct {
	PublicKey [32]byte
	IP        net.IP
	Port      uint16
}

// MaxTCPRelays bounds the TCP_RELAY section, per spec.md §6.4.
const MaxTCPRelays = 8

const relayRecordSize = 32 + 16 + 2

// SelfState is everything about the local identity that gets written
// alongside the friend list: NAME, STATUSMESSAGE, STATUS, TCP_RELAY, per
// spec.md §6.4.
type SelfState struct {
	Name          string
	StatusMessage string
	UserStatus    friend.UserStatus
	Relays        []RelayNode
}

// Serialize encodes the full save blob: a FRIENDS section for every
// roster entry followed by NAME/STATUSMESSAGE/STATUS/TCP_RELAY, in that
// order, per spec.md §6.4.
func Serialize(r *friend.Roster, self SelfState) ([]byte, error) {
	if len(self.Relays) > MaxTCPRelays {
		return nil, ErrTooManyRelays
	}

	var buf bytes.Buffer
	writeSection(&buf, SectionFriends, encodeFriendsSection(r))
	writeSection(&buf, SectionName, []byte(self.Name))
	writeSection(&buf, SectionStatusMessage, []byte(self.StatusMessage))
	writeSection(&buf, SectionStatus, []byte{byte(self.UserStatus)})
	writeSection(&buf, SectionTCPRelay, encodeRelays(self.Relays))
	return buf.Bytes(), nil
}

// Deserialize decodes a save blob, replaying every FRIENDS/OLDFRIENDS
// record into r (which must already be bound to the transport that will
// own the restored connections) and returning the recovered self state.
// Unknown section types are skipped, matching the original loader's
// tolerance for save files written by a newer version.
func Deserialize(data []byte, r *friend.Roster) (SelfState, error) {
	sections, err := ParseSections(data)
	if err != nil {
		return SelfState{}, err
	}

	var self SelfState
	for _, s := range sections {
		switch s.Type {
		case SectionFriends:
			friends, err := decodeFriendsSection(s.Data)
			if err != nil {
				return SelfState{}, err
			}
			for _, df := range friends {
				if err := applyDecodedFriend(r, df); err != nil {
					return SelfState{}, err
				}
			}
		case SectionOldFriends:
			friends, err := decodeOldFriendsSection(s.Data)
			if err != nil {
				return SelfState{}, err
			}
			for _, df := range friends {
				if err := applyDecodedFriend(r, df); err != nil {
					return SelfState{}, err
				}
			}
		case SectionName:
			self.Name = string(s.Data)
		case SectionStatusMessage:
			self.StatusMessage = string(s.Data)
		case SectionStatus:
			if len(s.Data) >= 1 {
				self.UserStatus = friend.UserStatus(s.Data[0])
			}
		case SectionTCPRelay:
			relays, err := decodeRelays(s.Data)
			if err != nil {
				return SelfState{}, err
			}
			self.Relays = relays
		}
	}
	return self, nil
}

func encodeRelays(relays []RelayNode) []byte {
	out := make([]byte, 0, len(relays)*relayRecordSize)
	for _, rl := range relays {
		var rec [relayRecordSize]byte
		copy(rec[0:32], rl.PublicKey[:])
		ip16 := rl.IP.To16()
		if ip16 == nil {
			ip16 = net.IPv6zero
		}
		copy(rec[32:48], ip16)
		binary.BigEndian.PutUint16(rec[48:50], rl.Port)
		out = append(out, rec[:]...)
	}
	return out
}

func decodeRelays(data []byte) ([]RelayNode, error) {
	if len(data)%relayRecordSize != 0 {
		return nil, errShortSection("TCP_RELAY", relayRecordSize, len(data)%relayRecordSize)
	}
	count := len(data) / relayRecordSize
	if count > MaxTCPRelays {
		return nil, ErrTooManyRelays
	}
	out := make([]RelayNode, count)
	for i := 0; i < count; i++ {
		rec := data[i*relayRecordSize : (i+1)*relayRecordSize]
		var rl RelayNode
		copy(rl.PublicKey[:], rec[0:32])
		rl.IP = append(net.IP(nil), rec[32:48]...)
		rl.Port = binary.BigEndian.Uint16(rec[48:50])
		out[i] = rl
	}
	return out, nil
}
