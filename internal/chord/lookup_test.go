package chord_test

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/DmMeta/ChordSeek/internal/chord"
)

// Targets computed from (self - 2^i + 1) wrap below zero for small ids;
// propagation must still reach the right peers.
func (s *NodeSuite) TestUpdateOthersWrapsPastZero() {
	ids := map[string]uint64{"p:50051": 6, "q:50051": 1}
	r := newTestRing(3, ids)
	p, q := r.node("p:50051"), r.node("q:50051")

	_, err := p.Join(s.Ctx, chord.JoinRequest{Init: true})
	s.Require().NoError(err)
	_, err = q.Join(s.Ctx, chord.JoinRequest{BootstrapAddr: "p:50051"})
	s.Require().NoError(err)

	s.Equal("q:50051", p.Successor().Addr)
	s.Equal("p:50051", q.Successor().Addr)
	s.assertRingInvariants(p, q)
}

func (s *NodeSuite) TestRoutingStaysLogarithmic() {
	// 32 evenly spread nodes on the 7-bit ring, joined one at a time.
	const bits, count = 7, 32
	ids := make(map[string]uint64, count)
	addrs := make([]string, count)
	for i := 0; i < count; i++ {
		addrs[i] = fmt.Sprintf("node-%d:50051", i)
		ids[addrs[i]] = uint64(i*4 + 1)
	}

	r := newTestRing(bits, ids)
	nodes := make([]*chord.Node, count)
	for i, addr := range addrs {
		nodes[i] = r.node(addr)
	}

	_, err := nodes[0].Join(s.Ctx, chord.JoinRequest{Init: true})
	s.Require().NoError(err)
	for i := 1; i < count; i++ {
		_, err := nodes[i].Join(s.Ctx, chord.JoinRequest{BootstrapAddr: addrs[0]})
		s.Require().NoError(err, "join of node %d", i)
	}
	s.assertRingInvariants(nodes...)

	// 1000 random lookups from random starting nodes; the 99th-percentile
	// number of remote closest-preceding-finger steps must stay within
	// ceil(log2 32) + 1.
	rng := rand.New(rand.NewSource(1))
	hops := make([]int, 0, 1000)
	for i := 0; i < 1000; i++ {
		start := nodes[rng.Intn(count)]
		key := uint64(rng.Intn(1 << bits))

		before := r.transport.cpfCalls
		ref, err := start.FindSuccessor(s.Ctx, key)
		s.Require().NoError(err)
		hops = append(hops, r.transport.cpfCalls-before)

		s.Equal(ringSuccessor(idsOf(nodes), key), ref.ID, "key %d from %d", key, start.ID())
	}

	sort.Ints(hops)
	p99 := hops[len(hops)*99/100]
	s.LessOrEqual(p99, 6, "p99 lookup hops")
}

func idsOf(nodes []*chord.Node) []uint64 {
	out := make([]uint64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}
