package receipt

// Entry binds one outstanding sent message to the transport packet number
// whose acknowledgment will resolve it.
type Entry struct {
	PacketNumber uint32
	MessageID    uint32
}

// Queue is a FIFO of Entries for one friend. Zero value is an empty queue.
type Queue struct {
	entries []Entry
}

// Push appends a new outstanding entry. Per spec.md §8, a queue must never
// contain duplicate message IDs; Push panics if asked to violate that,
// since it would indicate a bug in the message-id counter, not a runtime
// condition callers need to recover from.
func (q *Queue) Push(packetNumber, messageID uint32) {
	for _, e := range q.entries {
		if e.MessageID == messageID {
			panic("receipt: duplicate message id pushed")
		}
	}
	q.entries = append(q.entries, Entry{PacketNumber: packetNumber, MessageID: messageID})
}

// Len reports the number of outstanding entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Drain walks the queue from the front, popping and returning the
// message-id of every entry whose packet number isAcked reports as
// delivered, stopping at the first one that isn't. This is what keeps read
// receipts surfaced to the application in order (spec.md §4.4, §8).
func (q *Queue) Drain(isAcked func(packetNumber uint32) bool) []uint32 {
	var delivered []uint32
	i := 0
	for ; i < len(q.entries); i++ {
		if !isAcked(q.entries[i].PacketNumber) {
			break
		}
		delivered = append(delivered, q.entries[i].MessageID)
	}
	if i > 0 {
		q.entries = q.entries[i:]
	}
	return delivered
}

// DiscardAll drops every outstanding entry without delivering receipts,
// used when a friend disconnects (spec.md §4.3 "Liveness", §4.5).
func (q *Queue) DiscardAll() {
	q.entries = nil
}

// Entries returns a copy of the outstanding entries, for persistence or
// inspection. It is never used to drive wire decisions.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}
