package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoSuchKey)

	require.NoError(t, s.Save([]byte("first")))
	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	require.NoError(t, s.Save([]byte("second")))
	got, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestStoreReopenPersistsAcrossProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save([]byte("persisted")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load()
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
}
