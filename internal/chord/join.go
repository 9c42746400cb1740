package chord

import (
	"context"
	"fmt"

	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// JoinRequest carries the parameters of a join.
type JoinRequest struct {
	// BootstrapAddr is any live ring member; ignored when Init is set.
	BootstrapAddr string
	// Init marks the node as the first member of a brand new ring.
	Init bool
	// TransferData pulls the records this node now owns from its successor.
	TransferData bool
}

// Join integrates the node into the ring. Init bootstraps an empty ring;
// otherwise the node builds its finger table through BootstrapAddr, splices
// itself between its predecessor and successor, propagates itself into the
// tables of affected peers and optionally pulls the records it now owns.
// Joins must be serialized externally; a concurrent membership change
// leaves the ring inconsistent.
func (n *Node) Join(ctx context.Context, req JoinRequest) (int, error) {
	if req.Init {
		n.mu.Lock()
		for i := 0; i < n.fingers.len(); i++ {
			n.fingers.set(i, n.id, n.addr)
		}
		n.successor = n.addr
		n.predecessor = n.addr
		n.mu.Unlock()
		n.log.Info("bootstrapped new ring")
		return 1, nil
	}

	if req.BootstrapAddr == "" {
		return 0, apperr.Invalid("join requires a bootstrap address")
	}

	if err := n.initFingerTable(ctx, req.BootstrapAddr); err != nil {
		return 0, err
	}
	n.log.Debug("finger table initialized", "fingers", n.FingerTable())

	if err := n.updateOthers(ctx); err != nil {
		return 0, err
	}

	if req.TransferData {
		if err := n.pullRecords(ctx); err != nil {
			// The ring is already consistent; a failed handoff is logged and
			// not rolled back. Records the successor already released and
			// this node failed to store are lost.
			n.log.Error("record handoff from successor failed", "error", err)
		}
	}

	n.log.Info("joined ring", "successor", n.Successor().Addr, "predecessor", n.Predecessor().Addr)
	return 2, nil
}

// initFingerTable fills the finger table with lookups through the bootstrap
// node and splices this node into the ring between its new predecessor and
// successor.
func (n *Node) initFingerTable(ctx context.Context, bootstrap string) error {
	start0 := n.fingers.entry(0).Start

	succ, err := n.transport.FindSuccessor(ctx, bootstrap, start0)
	if err != nil {
		return apperr.Unavailable("find_successor", bootstrap, err)
	}

	n.mu.Lock()
	n.fingers.set(0, succ.ID, succ.Addr)
	n.successor = succ.Addr
	n.mu.Unlock()

	pred, err := n.transport.GetPredecessor(ctx, succ.Addr)
	if err != nil {
		return apperr.Unavailable("get_predecessor", succ.Addr, err)
	}
	n.SetPredecessor(pred.Addr)

	if err := n.transport.SetPredecessor(ctx, succ.Addr, n.addr); err != nil {
		return apperr.Unavailable("set_predecessor", succ.Addr, err)
	}
	if err := n.transport.SetSuccessor(ctx, pred.Addr, n.addr); err != nil {
		return apperr.Unavailable("set_successor", pred.Addr, err)
	}

	for i := 0; i < n.fingers.len()-1; i++ {
		n.mu.Lock()
		prev := n.fingers.entry(i)
		nextStart := n.fingers.entry(i + 1).Start
		inherit := n.space.InArc(n.id, prev.Node, nextStart)
		if inherit {
			n.fingers.set(i+1, prev.Node, prev.Addr)
		}
		n.mu.Unlock()
		if inherit {
			continue
		}

		f, err := n.transport.FindSuccessor(ctx, bootstrap, nextStart)
		if err != nil {
			return apperr.Unavailable("find_successor", bootstrap, err)
		}
		n.mu.Lock()
		n.fingers.set(i+1, f.ID, f.Addr)
		n.mu.Unlock()
	}
	return nil
}

// updateOthers walks the peers whose finger tables the new node may now
// belong to and asks each to reconsider one entry.
func (n *Node) updateOthers(ctx context.Context) error {
	n.hops.Inc()
	for i := 0; i < n.fingers.len(); i++ {
		// The predecessor of (n - 2^i + 1) is the furthest node whose
		// i-th finger could point at n; the offset pairs with the
		// inclusive-right arc in UpdateFingerTable.
		target := n.space.Sub(n.id, (uint64(1)<<uint(i))-1)
		predAddr, err := n.findPredecessor(ctx, target)
		if err != nil {
			return err
		}
		if err := n.transport.UpdateFingerTable(ctx, predAddr, n.addr, i); err != nil {
			return apperr.Unavailable("update_finger_table", predAddr, err)
		}
	}
	return nil
}

// UpdateFingerTable reconsiders finger entry index against the joining
// node and, when the entry changed, forwards the notification to the
// predecessor, which may be affected for the same reason.
func (n *Node) UpdateFingerTable(ctx context.Context, joiningAddr string, index int) error {
	if index < 0 || index >= n.fingers.len() {
		return apperr.Invalid("finger index %d out of range", index)
	}

	s := n.space.ID(joiningAddr)

	n.mu.Lock()
	e := n.fingers.entry(index)
	var update bool
	if e.Node == n.id {
		// The entry still points at this node itself, so any id on
		// [start, self] supersedes it.
		update = n.space.InArc(e.Start, n.id, s) || s == n.id
	} else {
		update = n.space.InArcRightIncl(n.id, e.Node, s)
	}
	var predAddr string
	if update {
		n.fingers.set(index, s, joiningAddr)
		predAddr = n.predecessor
	}
	n.mu.Unlock()

	if !update {
		return nil
	}
	n.log.Debug("finger entry updated", "index", index, "points_to", s)

	if predAddr == "" || predAddr == joiningAddr {
		return nil
	}
	if err := n.transport.UpdateFingerTable(ctx, predAddr, joiningAddr, index); err != nil {
		return apperr.Unavailable("update_finger_table", predAddr, err)
	}
	return nil
}

// pullRecords asks the successor for the records this node now owns.
func (n *Node) pullRecords(ctx context.Context) error {
	succ := n.Successor()
	records, err := n.transport.RequestData(ctx, succ.Addr, n.id)
	if err != nil {
		return fmt.Errorf("request_data on %s: %w", succ.Addr, err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := n.store.Store(ctx, records); err != nil {
		return fmt.Errorf("storing %d handed-off records: %w", len(records), err)
	}
	n.log.Info("records transferred from successor", "count", len(records))
	return nil
}
