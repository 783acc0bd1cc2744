package persist

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	saveBucket = []byte("savedata")
	saveKey    = []byte("current")
)

// Store persists one save blob atomically to a bbolt database file. bbolt
// commits via its own mmap+fsync transaction, which is the
// temp-file-rename dance the original's cooked-save path hand-rolled,
// grounded on the file/manager.go pattern of wrapping a blocking I/O
// backend behind a small Go API.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the bbolt database at path, creating the
// savedata bucket if it does not already exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(saveBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: initializing %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes blob as the current save, replacing whatever was stored
// there before, in a single bbolt transaction.
func (s *Store) Save(blob []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(saveBucket).Put(saveKey, blob)
	})
	if err != nil {
		return fmt.Errorf("persist: saving: %w", err)
	}
	logrus.WithField("bytes", len(blob)).Debug("persist: save committed")
	return nil
}

// Load reads back the most recently Saved blob. Returns ErrNoSuchKey if
// nothing has ever been saved to this store.
func (s *Store) Load() ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(saveBucket).Get(saveKey)
		if v == nil {
			return ErrNoSuchKey
		}
		blob = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}
