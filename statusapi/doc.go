// Package statusapi exposes a read-only HTTP introspection surface over a
// running messenger.Messenger: the local identity, the friend roster, and
// per-friend connection/receipt state. It never mutates anything — every
// handler reads through Messenger's snapshot accessors, which take the
// one documented lock in the core for exactly this purpose.
package statusapi
