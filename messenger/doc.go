// Package messenger is the top-level wiring for a single local identity:
// it owns the friend.Roster, the dispatch.Dispatcher that feeds it, the
// file-transfer and receipt state those carry, and the tick-driven
// lifecycle loop that moves friends through their request/presence
// states and drains outstanding work every cycle.
//
// The core itself is single-threaded cooperative, per spec.md §5: every
// public method and Tick must be called from the same goroutine. The one
// documented exception is mu, which guards the handful of fields the
// optional statusapi HTTP surface reads from a different goroutine.
package messenger
