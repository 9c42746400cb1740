// Package chord implements the overlay protocol of a single ring peer:
// per-node ring state, the join/leave/lookup algorithms, finger-table
// propagation, and the key/value handoff that accompanies membership
// changes. Wire encoding and the local record store live behind the
// Transport and RecordStore interfaces.
package chord

import (
	"log/slog"
	"sync"

	"github.com/DmMeta/ChordSeek/internal/logger"
	"github.com/DmMeta/ChordSeek/internal/ring"
)

// Node is one ring peer. Ring state (successor, predecessor, fingers) is
// guarded by mu; the mutex is never held across an outgoing RPC, because
// handlers routinely call back into the same node through the transport.
type Node struct {
	space ring.Space
	addr  string
	id    uint64

	mu          sync.Mutex
	successor   string
	predecessor string
	fingers     *fingerTable

	transport Transport
	store     RecordStore
	hops      *HopCounter
	log       *slog.Logger
}

// Option configures a Node.
type Option func(*Node)

// WithLogger replaces the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Node) { n.log = log }
}

// New creates an orphan node: no successor, no predecessor, empty fingers.
// It takes part in a ring only after Join.
func New(space ring.Space, addr string, transport Transport, store RecordStore, opts ...Option) *Node {
	n := &Node{
		space:     space,
		addr:      addr,
		id:        space.ID(addr),
		fingers:   newFingerTable(space, space.ID(addr)),
		transport: transport,
		store:     store,
		hops:      &HopCounter{},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = logger.ForNode(n.log, n.id, n.addr)
	return n
}

// ID returns the node's ring identifier.
func (n *Node) ID() uint64 { return n.id }

// Addr returns the node's advertised address.
func (n *Node) Addr() string { return n.addr }

// Space returns the identifier space the node lives in.
func (n *Node) Space() ring.Space { return n.space }

// Hops returns the node's hop counter.
func (n *Node) Hops() *HopCounter { return n.hops }

// Successor returns the current successor pointer.
func (n *Node) Successor() NodeRef {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ref(n.successor)
}

// Predecessor returns the current predecessor pointer.
func (n *Node) Predecessor() NodeRef {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ref(n.predecessor)
}

// SetSuccessor installs a new successor and keeps the first finger in step
// with it.
func (n *Node) SetSuccessor(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successor = addr
	n.fingers.set(0, n.space.ID(addr), addr)
	n.log.Debug("successor updated", "successor", addr)
}

// SetPredecessor installs a new predecessor.
func (n *Node) SetPredecessor(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.predecessor = addr
	n.log.Debug("predecessor updated", "predecessor", addr)
}

// FingerTable returns a copy of the finger table.
func (n *Node) FingerTable() []FingerEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fingers.snapshot()
}

// ref builds a NodeRef for a peer address; an empty address yields the
// zero ref, so orphan state never hashes the empty string.
func (n *Node) ref(addr string) NodeRef {
	if addr == "" {
		return NodeRef{}
	}
	return NodeRef{ID: n.space.ID(addr), Addr: addr}
}
