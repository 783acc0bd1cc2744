// Package receipt implements the per-friend FIFO of outstanding message
// packet-numbers awaiting transport acknowledgment (spec.md §4.4). The
// queue is drained in strict order: the first not-yet-acked entry stops
// the scan, so the application only ever observes read receipts in
// message-id order.
package receipt
