package chord

import (
	"context"
	"fmt"

	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// Leave removes the node from the ring gracefully: the neighbors are
// spliced together, every local record moves to the successor, affected
// finger tables are rewritten, and local state is cleared. Like Join, a
// leave must not run concurrently with another membership change.
func (n *Node) Leave(ctx context.Context) (int, error) {
	n.mu.Lock()
	pred := n.predecessor
	succ := n.successor
	n.mu.Unlock()

	// Alone on the ring: the node's records die with it.
	if pred == "" || pred == n.addr {
		if _, err := n.store.FetchAndDeleteAll(ctx); err != nil {
			n.log.Error("purging local records failed", "error", err)
		}
		n.reset()
		n.log.Info("left ring (last member)")
		return 5, nil
	}

	if err := n.transport.SetPredecessor(ctx, succ, pred); err != nil {
		return 0, apperr.Unavailable("set_predecessor", succ, err)
	}
	if err := n.transport.SetSuccessor(ctx, pred, succ); err != nil {
		return 0, apperr.Unavailable("set_successor", pred, err)
	}

	records, err := n.store.FetchAndDeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("draining local records: %w", err)
	}
	if len(records) > 0 {
		if err := n.transport.StoreRecords(ctx, succ, records); err != nil {
			// The records are gone locally; surface the loss loudly.
			n.log.Error("pushing records to successor failed", "successor", succ,
				"count", len(records), "error", err)
		} else {
			n.log.Info("records transferred to successor", "count", len(records))
		}
	}

	if err := n.fixOthers(ctx, succ); err != nil {
		return 0, err
	}

	n.reset()
	n.log.Info("left ring", "successor", succ, "predecessor", pred)
	return 8, nil
}

// fixOthers is the departure counterpart of updateOthers: every peer that
// may route through this node is told to route through its successor
// instead.
func (n *Node) fixOthers(ctx context.Context, successorAddr string) error {
	n.hops.Inc()
	for i := 0; i < n.fingers.len(); i++ {
		target := n.space.Sub(n.id, (uint64(1)<<uint(i))-1)
		predAddr, err := n.findPredecessor(ctx, target)
		if err != nil {
			return err
		}
		if err := n.transport.FixFingerTable(ctx, predAddr, n.addr, successorAddr, i); err != nil {
			return apperr.Unavailable("fix_finger_table", predAddr, err)
		}
	}
	return nil
}

// FixFingerTable replaces every finger entry pointing at the leaver with
// the leaver's successor and, when anything changed, forwards the
// notification to the predecessor. The leaver can appear at several
// indices at once, so the whole table is scanned regardless of index.
func (n *Node) FixFingerTable(ctx context.Context, leaverAddr, successorAddr string, index int) error {
	if index < 0 || index >= n.fingers.len() {
		return apperr.Invalid("finger index %d out of range", index)
	}

	leaver := n.space.ID(leaverAddr)
	replacement := n.space.ID(successorAddr)

	n.mu.Lock()
	changed := false
	for i := 0; i < n.fingers.len(); i++ {
		if n.fingers.entry(i).Node == leaver && n.fingers.entry(i).Addr == leaverAddr {
			n.fingers.set(i, replacement, successorAddr)
			changed = true
		}
	}
	predAddr := n.predecessor
	n.mu.Unlock()

	if !changed {
		return nil
	}
	n.log.Debug("fingers rerouted around leaver", "leaver", leaver, "replacement", replacement)

	if predAddr == "" || predAddr == leaverAddr {
		return nil
	}
	if err := n.transport.FixFingerTable(ctx, predAddr, leaverAddr, successorAddr, index); err != nil {
		return apperr.Unavailable("fix_finger_table", predAddr, err)
	}
	return nil
}

// reset returns the node to its orphan state.
func (n *Node) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successor = ""
	n.predecessor = ""
	n.fingers.clear()
}
