package persist

import "errors"

var (
	ErrTruncated      = errors.New("persist: section truncated")
	ErrUnknownVersion = errors.New("persist: unsupported FRIENDS version")
	ErrNoSuchKey      = errors.New("persist: no save blob stored under this key")
	ErrTooManyRelays  = errors.New("persist: more than 8 TCP relay entries")
)
