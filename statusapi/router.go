package statusapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nyxmesh/messenger/messenger"
)

// NewRouter builds the introspection API router for msn: GET /health,
// GET /self, GET /friends, GET /friends/{id}.
func NewRouter(msn *messenger.Messenger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/self", selfHandler(msn)).Methods("GET")
	r.HandleFunc("/friends", friendsHandler(msn)).Methods("GET")
	r.HandleFunc("/friends/{id}", friendHandler(msn)).Methods("GET")
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type selfResponse struct {
	PublicKey     string `json:"public_key"`
	Name          string `json:"name"`
	StatusMessage string `json:"status_message"`
	UserStatus    uint8  `json:"user_status"`
	FriendCount   int    `json:"friend_count"`
}

func selfHandler(msn *messenger.Messenger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := msn.Snapshot()
		writeJSON(w, selfResponse{
			PublicKey:     hex.EncodeToString(s.PublicKey[:]),
			Name:          s.Name,
			StatusMessage: s.StatusMessage,
			UserStatus:    uint8(s.UserStatus),
			FriendCount:   s.FriendCount,
		})
	}
}

type friendResponse struct {
	FriendNumber        uint32 `json:"friend_number"`
	Status              uint8  `json:"status"`
	PublicKey           string `json:"public_key"`
	Nickname            string `json:"nickname"`
	StatusMessage       string `json:"status_message"`
	UserStatus          uint8  `json:"user_status"`
	ConnectionKind      uint8  `json:"connection_kind"`
	DeviceCount         int    `json:"device_count"`
	OutstandingReceipts int    `json:"outstanding_receipts"`
}

func toFriendResponse(s messenger.FriendSnapshot) friendResponse {
	return friendResponse{
		FriendNumber:        s.FriendNumber,
		Status:              uint8(s.Status),
		PublicKey:           hex.EncodeToString(s.PublicKey[:]),
		Nickname:            s.Nickname,
		StatusMessage:       s.StatusMessage,
		UserStatus:          uint8(s.UserStatus),
		ConnectionKind:      uint8(s.ConnectionKind),
		DeviceCount:         s.DeviceCount,
		OutstandingReceipts: s.OutstandingReceipts,
	}
}

func friendsHandler(msn *messenger.Messenger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps := msn.Friends()
		out := make([]friendResponse, len(snaps))
		for i, s := range snaps {
			out[i] = toFriendResponse(s)
		}
		writeJSON(w, out)
	}
}

func friendHandler(msn *messenger.Messenger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := mux.Vars(r)["id"]
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			http.Error(w, "invalid friend id", http.StatusBadRequest)
			return
		}
		snap, ok := msn.Friend(uint32(id))
		if !ok {
			http.Error(w, "friend not found", http.StatusNotFound)
			return
		}
		writeJSON(w, toFriendResponse(snap))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
