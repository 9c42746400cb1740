package chord

import (
	"context"

	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// FindSuccessor returns the node owning keyID: the first live node at or
// after keyID in ring order.
func (n *Node) FindSuccessor(ctx context.Context, keyID uint64) (NodeRef, error) {
	if !n.space.Contains(keyID) {
		return NodeRef{}, apperr.Invalid("key %d outside identifier space of %d bits", keyID, n.space.Bits())
	}

	predAddr, err := n.findPredecessor(ctx, keyID)
	if err != nil {
		return NodeRef{}, err
	}
	succ, err := n.transport.GetSuccessor(ctx, predAddr)
	if err != nil {
		return NodeRef{}, apperr.Unavailable("get_successor", predAddr, err)
	}
	if err := n.checkRef(succ, predAddr); err != nil {
		return NodeRef{}, err
	}
	return succ, nil
}

// findPredecessor walks the ring until it reaches the node whose arc
// (node, node.successor] contains keyID. The first closest-preceding-finger
// step is resolved against the local table; later steps ask remote peers.
func (n *Node) findPredecessor(ctx context.Context, keyID uint64) (string, error) {
	n.hops.Inc()

	// The node asks itself for its successor over the transport, exactly
	// like any other peer would.
	succ, err := n.transport.GetSuccessor(ctx, n.addr)
	if err != nil {
		return "", apperr.Unavailable("get_successor", n.addr, err)
	}
	if err := n.checkRef(succ, n.addr); err != nil {
		return "", err
	}

	// Single-node ring: the node is every key's predecessor.
	if succ.ID == n.id {
		return n.addr, nil
	}

	cur := NodeRef{ID: n.id, Addr: n.addr}
	curSuccID := succ.ID

	if !n.space.InArcRightIncl(n.id, succ.ID, keyID) {
		if f, ok := n.closestPrecedingLocal(keyID); ok {
			cur = f
		}
	}

	// Refresh the successor only when the local scan actually moved us.
	if cur.ID != n.id {
		s, err := n.transport.GetSuccessor(ctx, cur.Addr)
		if err != nil {
			return "", apperr.Unavailable("get_successor", cur.Addr, err)
		}
		if err := n.checkRef(s, cur.Addr); err != nil {
			return "", err
		}
		curSuccID = s.ID
	}

	for !n.space.InArcRightIncl(cur.ID, curSuccID, keyID) {
		next, err := n.transport.ClosestPrecedingFinger(ctx, cur.Addr, keyID)
		if err != nil {
			return "", apperr.Unavailable("closest_preceding_finger", cur.Addr, err)
		}
		if err := n.checkRef(next, cur.Addr); err != nil {
			return "", err
		}
		s, err := n.transport.GetSuccessor(ctx, next.Addr)
		if err != nil {
			return "", apperr.Unavailable("get_successor", next.Addr, err)
		}
		if err := n.checkRef(s, next.Addr); err != nil {
			return "", err
		}
		cur = next
		curSuccID = s.ID
	}
	return cur.Addr, nil
}

// ClosestPrecedingFinger returns the highest finger strictly between this
// node and keyID, or the node itself when no finger qualifies.
func (n *Node) ClosestPrecedingFinger(keyID uint64) (NodeRef, error) {
	if !n.space.Contains(keyID) {
		return NodeRef{}, apperr.Invalid("key %d outside identifier space of %d bits", keyID, n.space.Bits())
	}
	if f, ok := n.closestPrecedingLocal(keyID); ok {
		return f, nil
	}
	return NodeRef{ID: n.id, Addr: n.addr}, nil
}

func (n *Node) closestPrecedingLocal(keyID uint64) (NodeRef, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := n.fingers.len() - 1; i >= 0; i-- {
		e := n.fingers.entry(i)
		if e.Addr == "" {
			continue
		}
		if n.space.InArcOpen(n.id, keyID, e.Node) {
			return NodeRef{ID: e.Node, Addr: e.Addr}, true
		}
	}
	return NodeRef{}, false
}

// checkRef rejects an identifier no peer of this ring could hold. Such a
// value cannot lie on any arc the lookup checks; routing on it would spin.
func (n *Node) checkRef(ref NodeRef, from string) error {
	if !n.space.Contains(ref.ID) {
		err := apperr.Protocol("node id %d from %s cannot lie on a %d-bit ring", ref.ID, from, n.space.Bits())
		n.log.Error("protocol violation", "error", err)
		return err
	}
	return nil
}
