package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nyxmesh/messenger/messenger"
	"github.com/nyxmesh/messenger/transport/memory"
)

func newTestMessenger(t *testing.T) *messenger.Messenger {
	t.Helper()
	var pk [32]byte
	pk[0] = 0x42
	m := messenger.New(pk, memory.New(32), nil)
	return m
}

func TestHealthEndpoint(t *testing.T) {
	m := newTestMessenger(t)
	r := NewRouter(m)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSelfEndpointReportsIdentity(t *testing.T) {
	m := newTestMessenger(t)
	require.NoError(t, m.SetName("floyd"))
	r := NewRouter(m)
	req := httptest.NewRequest(http.MethodGet, "/self", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp selfResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "floyd", resp.Name)
}

func TestFriendsEndpointListsRoster(t *testing.T) {
	m := newTestMessenger(t)
	var friendPK [32]byte
	friendPK[0] = 0x99
	n, err := m.AddFriendNoRequest(friendPK)
	require.NoError(t, err)

	r := NewRouter(m)
	req := httptest.NewRequest(http.MethodGet, "/friends", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []friendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.Equal(t, n, resp[0].FriendNumber)
}

func TestFriendEndpointNotFound(t *testing.T) {
	m := newTestMessenger(t)
	r := NewRouter(m)
	req := httptest.NewRequest(http.MethodGet, "/friends/7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFriendEndpointBadID(t *testing.T) {
	m := newTestMessenger(t)
	r := NewRouter(m)
	req := httptest.NewRequest(http.MethodGet, "/friends/notanumber", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
