// Package memory provides an in-process Transport implementation that
// pairs two Conns directly, without touching the network. It exists so
// every other package in this module can drive real send/receive/ack
// flows in tests (and so cmd/messengerd can offer a --simulate mode)
// without depending on a real net-crypto transport.
//
// This generalizes the fake transport pattern the teacher repo repeats
// per-package in its own *_test.go files (e.g. file/mocks_test.go,
// friend/mocks_test.go) into one reusable, non-test package, since this
// module's tests need the same fake in friend, file, dispatch, and
// messenger alike.
package memory

import (
	"sync"

	"github.com/nyxmesh/messenger/transport"
)

// Link is a bounded, lossless pipe connecting two *Conn endpoints. Packets
// sent on one side are delivered to the other synchronously, inside the
// send call, and acknowledged as soon as delivery returns.
type Link struct {
	capacity int
}

// NewLink creates a Link with the given reliable-send queue capacity per
// direction.
func NewLink(capacity int) *Link {
	if capacity <= 0 {
		capacity = 64
	}
	return &Link{capacity: capacity}
}

// Pair creates two Conns wired to each other over fresh queues of this
// Link's capacity. a talks to b and vice versa.
func (l *Link) Pair() (a, b *Conn) {
	a = newConn(l.capacity)
	b = newConn(l.capacity)
	a.peer = b
	b.peer = a
	return a, b
}

// Conn is an in-memory transport.Conn. It is connected from construction
// until Close is called.
type Conn struct {
	mu        sync.Mutex
	peer      *Conn
	closed    bool
	congested bool
	capacity  int

	nextPacketNumber uint32
	acked            map[uint32]bool

	onLossless transport.LosslessPacketFunc
	onLossy    transport.LossyPacketFunc
	friendNum  uint32
	deviceIdx  int

	inflight int
}

func newConn(capacity int) *Conn {
	return &Conn{
		capacity: capacity,
		acked:    make(map[uint32]bool),
	}
}

// SetCongested forces IsCongested to report true, simulating the transport
// reaching max send rate.
func (c *Conn) SetCongested(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.congested = v
}

// AckAll marks every outstanding reliable packet number this Conn has
// issued as acknowledged, as if the peer had consumed its whole queue.
func (c *Conn) AckAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pn := range c.acked {
		c.acked[pn] = true
	}
	c.inflight = 0
}

// Ack marks a single reliable packet number as acknowledged.
func (c *Conn) Ack(packetNumber uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.acked[packetNumber]; ok {
		c.acked[packetNumber] = true
		c.inflight--
	}
}

func (c *Conn) Status() transport.ConnStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.StatusNotConnected
	}
	return transport.StatusConnected
}

func (c *Conn) Kind() transport.ConnKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.KindNone
	}
	return transport.KindUDP
}

func (c *Conn) SendReliable(data []byte) (uint32, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, transport.ErrNotConnected
	}
	if c.inflight >= c.capacity {
		c.mu.Unlock()
		return 0, transport.ErrQueueFull
	}
	c.nextPacketNumber++
	pn := c.nextPacketNumber
	c.acked[pn] = false
	c.inflight++
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.deliverLossless(data)
	}
	// Auto-acknowledge once delivered: a real net-crypto transport acks on
	// the peer's own schedule, but for the in-memory fake "sent" and
	// "accepted by peer's queue" happen atomically, so ack immediately.
	c.Ack(pn)
	return pn, nil
}

func (c *Conn) SendUnreliable(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrNotConnected
	}
	peer := c.peer
	c.mu.Unlock()
	if peer != nil {
		peer.deliverLossy(data)
	}
	return nil
}

func (c *Conn) IsAcked(packetNumber uint32) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acked, ok := c.acked[packetNumber]
	if !ok {
		return false, transport.ErrUnknownPacketNumber
	}
	return acked, nil
}

func (c *Conn) FreeSendSlots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity - c.inflight
}

func (c *Conn) IsCongested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.congested
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) deliverLossless(data []byte) {
	c.mu.Lock()
	fn := c.onLossless
	fnum, didx := c.friendNum, c.deviceIdx
	c.mu.Unlock()
	if fn != nil {
		fn(fnum, didx, data)
	}
}

func (c *Conn) deliverLossy(data []byte) {
	c.mu.Lock()
	fn := c.onLossy
	fnum, didx := c.friendNum, c.deviceIdx
	c.mu.Unlock()
	if fn != nil {
		fn(fnum, didx, data)
	}
}

// Transport implements transport.Transport by handing out pre-paired Conns.
// Tests register the far side of each pair directly; Open is provided for
// API completeness but most tests wire Conns with Link.Pair and
// Transport.Adopt instead of going through a public-key-keyed Open.
type Transport struct {
	mu         sync.Mutex
	onStatus   transport.StatusChangeFunc
	onLossless transport.LosslessPacketFunc
	onLossy    transport.LossyPacketFunc
	conns      map[[32]byte]*Conn
	link       *Link
}

// New creates a Transport backed by a fresh Link with the given per-Conn
// reliable queue capacity.
func New(capacity int) *Transport {
	return &Transport{
		conns: make(map[[32]byte]*Conn),
		link:  NewLink(capacity),
	}
}

// Adopt wires an already-constructed Conn into this Transport's callback
// routing under the given friend/device identity, and delivers future
// inbound packets on it to the registered callbacks.
func (t *Transport) Adopt(publicKey [32]byte, friendNumber uint32, deviceIndex int, conn *Conn) {
	t.mu.Lock()
	conn.friendNum = friendNumber
	conn.deviceIdx = deviceIndex
	conn.onLossless = t.onLossless
	conn.onLossy = t.onLossy
	t.conns[publicKey] = conn
	onStatus := t.onStatus
	t.mu.Unlock()
	if onStatus != nil {
		onStatus(friendNumber, deviceIndex, conn.Status())
	}
}

func (t *Transport) Open(publicKey [32]byte, friendNumber uint32, deviceIndex int) (transport.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[publicKey]; ok {
		return c, nil
	}
	a, _ := t.link.Pair()
	a.friendNum = friendNumber
	a.deviceIdx = deviceIndex
	a.onLossless = t.onLossless
	a.onLossy = t.onLossy
	t.conns[publicKey] = a
	return a, nil
}

func (t *Transport) OnStatusChange(fn transport.StatusChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStatus = fn
}

func (t *Transport) OnLosslessPacket(fn transport.LosslessPacketFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLossless = fn
	for _, c := range t.conns {
		c.onLossless = fn
	}
}

func (t *Transport) OnLossyPacket(fn transport.LossyPacketFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLossy = fn
	for _, c := range t.conns {
		c.onLossy = fn
	}
}
