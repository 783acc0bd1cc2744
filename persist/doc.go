// Package persist implements the save/restore byte format from spec.md
// §6.4: a concatenation of typed sections, each {type:u16, len:u32,
// cookie:u32, bytes}. Serialize/Deserialize are pure functions over
// []byte, independent of any storage backend; Store wraps a bbolt-backed
// default backend for callers that want atomic on-disk persistence
// without hand-rolling a temp-file-rename dance.
package persist
