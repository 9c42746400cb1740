package chord_test

import (
	"context"
	"fmt"
	"sort"

	"github.com/DmMeta/ChordSeek/internal/chord"
	"github.com/DmMeta/ChordSeek/internal/ring"
	"github.com/DmMeta/ChordSeek/internal/test"
)

// memTransport wires nodes of one test ring together by direct method
// dispatch, standing in for the HTTP client.
type memTransport struct {
	nodes map[string]*chord.Node

	// cpfCalls counts remote closest_preceding_finger calls, the per-lookup
	// hop metric of the routing bound tests.
	cpfCalls int
}

func newMemTransport() *memTransport {
	return &memTransport{nodes: make(map[string]*chord.Node)}
}

func (t *memTransport) add(n *chord.Node) { t.nodes[n.Addr()] = n }

func (t *memTransport) remove(addr string) { delete(t.nodes, addr) }

func (t *memTransport) peer(addr string) (*chord.Node, error) {
	n, ok := t.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("peer %s unreachable", addr)
	}
	return n, nil
}

func (t *memTransport) FindSuccessor(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	n, err := t.peer(addr)
	if err != nil {
		return chord.NodeRef{}, err
	}
	return n.FindSuccessor(ctx, keyID)
}

func (t *memTransport) GetSuccessor(ctx context.Context, addr string) (chord.NodeRef, error) {
	n, err := t.peer(addr)
	if err != nil {
		return chord.NodeRef{}, err
	}
	return n.Successor(), nil
}

func (t *memTransport) GetPredecessor(ctx context.Context, addr string) (chord.NodeRef, error) {
	n, err := t.peer(addr)
	if err != nil {
		return chord.NodeRef{}, err
	}
	return n.Predecessor(), nil
}

func (t *memTransport) SetSuccessor(ctx context.Context, addr, successorAddr string) error {
	n, err := t.peer(addr)
	if err != nil {
		return err
	}
	n.SetSuccessor(successorAddr)
	return nil
}

func (t *memTransport) SetPredecessor(ctx context.Context, addr, predecessorAddr string) error {
	n, err := t.peer(addr)
	if err != nil {
		return err
	}
	n.SetPredecessor(predecessorAddr)
	return nil
}

func (t *memTransport) ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	n, err := t.peer(addr)
	if err != nil {
		return chord.NodeRef{}, err
	}
	t.cpfCalls++
	return n.ClosestPrecedingFinger(keyID)
}

func (t *memTransport) UpdateFingerTable(ctx context.Context, addr, joiningAddr string, index int) error {
	n, err := t.peer(addr)
	if err != nil {
		return err
	}
	return n.UpdateFingerTable(ctx, joiningAddr, index)
}

func (t *memTransport) FixFingerTable(ctx context.Context, addr, leaverAddr, successorAddr string, index int) error {
	n, err := t.peer(addr)
	if err != nil {
		return err
	}
	return n.FixFingerTable(ctx, leaverAddr, successorAddr, index)
}

func (t *memTransport) RequestData(ctx context.Context, addr string, nodeID uint64) ([]chord.Record, error) {
	n, err := t.peer(addr)
	if err != nil {
		return nil, err
	}
	return n.RequestData(ctx, nodeID)
}

func (t *memTransport) StoreRecords(ctx context.Context, addr string, records []chord.Record) error {
	n, err := t.peer(addr)
	if err != nil {
		return err
	}
	return n.StoreRecords(ctx, records)
}

// memStore is an in-memory chord.RecordStore.
type memStore struct {
	space ring.Space
	recs  []chord.Record
}

func (s *memStore) Store(ctx context.Context, records []chord.Record) error {
	s.recs = append(s.recs, records...)
	return nil
}

func (s *memStore) FetchByCriteria(ctx context.Context, education string, minAwards int) ([]chord.Record, error) {
	var out []chord.Record
	for _, r := range s.recs {
		if r.Education == education && r.Awards >= minAwards {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) FetchAndDeleteAll(ctx context.Context) ([]chord.Record, error) {
	out := s.recs
	s.recs = nil
	return out, nil
}

func (s *memStore) FetchAndDeleteArc(ctx context.Context, lo, hi uint64) ([]chord.Record, error) {
	var out, keep []chord.Record
	for _, r := range s.recs {
		if s.space.InArcRightIncl(lo, hi, r.Hash) {
			out = append(out, r)
		} else {
			keep = append(keep, r)
		}
	}
	s.recs = keep
	return out, nil
}

// testRing assembles nodes sharing one identifier space, transport and
// id placement.
type testRing struct {
	space     ring.Space
	transport *memTransport
	stores    map[string]*memStore
}

func newTestRing(bits int, ids map[string]uint64) *testRing {
	return &testRing{
		space:     test.Space(bits, ids),
		transport: newMemTransport(),
		stores:    make(map[string]*memStore),
	}
}

var quiet = test.Logger()

func (r *testRing) node(addr string) *chord.Node {
	st := &memStore{space: r.space}
	r.stores[addr] = st
	n := chord.New(r.space, addr, r.transport, st, chord.WithLogger(quiet))
	r.transport.add(n)
	return n
}

// ringSuccessor computes the expected owner of key among ids.
func ringSuccessor(ids []uint64, key uint64) uint64 {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if id >= key {
			return id
		}
	}
	return sorted[0]
}
