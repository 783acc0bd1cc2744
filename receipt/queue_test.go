package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushAndLen(t *testing.T) {
	var q Queue
	q.Push(1, 100)
	q.Push(2, 101)
	assert.Equal(t, 2, q.Len())
}

func TestQueuePushDuplicateMessageIDPanics(t *testing.T) {
	var q Queue
	q.Push(1, 100)
	assert.Panics(t, func() { q.Push(2, 100) })
}

func TestQueueDrainInOrderOnly(t *testing.T) {
	// Scenario 6 from spec.md §8: A sends m1,m2,m3; transport acks
	// m2,m1,m3 out of send order, but the FIFO prefix rule means only m1
	// can be drained until it is acked, after which m2, then m3 follow.
	var q Queue
	q.Push(10, 1) // m1
	q.Push(11, 2) // m2
	q.Push(12, 3) // m3

	acked := map[uint32]bool{11: true} // only m2's packet acked so far
	got := q.Drain(func(pn uint32) bool { return acked[pn] })
	require.Empty(t, got, "m1 not yet acked, nothing should drain")
	assert.Equal(t, 3, q.Len())

	acked[10] = true // now m1 acked too
	got = q.Drain(func(pn uint32) bool { return acked[pn] })
	assert.Equal(t, []uint32{1, 2}, got)
	assert.Equal(t, 1, q.Len())

	acked[12] = true
	got = q.Drain(func(pn uint32) bool { return acked[pn] })
	assert.Equal(t, []uint32{3}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDiscardAll(t *testing.T) {
	var q Queue
	q.Push(1, 1)
	q.Push(2, 2)
	q.DiscardAll()
	assert.Equal(t, 0, q.Len())
}

func TestQueueEntriesIsCopy(t *testing.T) {
	var q Queue
	q.Push(1, 1)
	entries := q.Entries()
	entries[0].MessageID = 999
	assert.Equal(t, uint32(1), q.Entries()[0].MessageID)
}
