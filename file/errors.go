package file

import "errors"

// Error kinds for file-transfer operations, per spec.md §7
// "state-violation" and "resource" categories, plus the boundary errors
// spec.md §8 names explicitly.
var (
	ErrInvalidFileNumber = errors.New("file: invalid file number")
	ErrNotTransferring   = errors.New("file: slot is not transferring")
	ErrNotPaused         = errors.New("file: slot is not paused")
	ErrAlreadyPaused     = errors.New("file: slot already paused by us")
	ErrPausedByOther     = errors.New("file: slot is paused by the remote side")
	ErrNoSlots           = errors.New("file: no free slot available")
	ErrSendQueueFull     = errors.New("file: transport send queue full")
	ErrSendFailed        = errors.New("file: transport send failed")
	ErrBadPosition       = errors.New("file: chunk position does not match transferred offset")
	ErrBadState          = errors.New("file: operation not valid in current slot state")
	ErrBadControl        = errors.New("file: malformed or unknown control operation")
	ErrChunkTooLarge     = errors.New("file: chunk exceeds maximum size")
	ErrSlotNotEmpty      = errors.New("file: slot already in use")
)
