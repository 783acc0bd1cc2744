// Package file implements the file-transfer engine: the per-slot state
// machine, the per-tick sender-side chunk-request driver, and the
// receiver-side chunk-delivery bookkeeping described in spec.md §4.3.
//
// A transfer is addressed by a slot number in [0, MaxSlots) within one of
// two fixed-size arrays per friend — outgoing and incoming — never by a
// pointer or a heap-allocated handle, so slot state survives exactly as
// long as the owning friend record does.
package file
