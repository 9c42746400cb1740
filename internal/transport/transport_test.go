package transport_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DmMeta/ChordSeek/internal/chord"
	"github.com/DmMeta/ChordSeek/internal/ring"
	"github.com/DmMeta/ChordSeek/internal/test"
	"github.com/DmMeta/ChordSeek/internal/transport"

	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

var quiet = test.Logger()

// memStore keeps records in memory; the transport tests exercise the wire,
// not SQLite.
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

type TransportSuite struct {
	*test.Suite

	client  *transport.Client
	servers []*httptest.Server
}

func TestTransportSuite(t *testing.T) {
	test.Run(t, &TransportSuite{Suite: test.NewSuite()})
}

func (s *TransportSuite) TearDownTest() {
	for _, ts := range s.servers {
		ts.Close()
	}
	s.servers = nil
}

// startNode brings up a live node on a loopback listener. The listener is
// opened first so the node can advertise its real host:port, and the id is
// registered before the node hashes its own address.
func (s *TransportSuite) startNode(ids map[string]uint64, id uint64) (*chord.Node, string) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	addr := lis.Addr().String()
	ids[addr] = id
	sp := test.Space(3, ids)
	st := &memStore{space: sp}
	node := chord.New(sp, addr, s.client, st, chord.WithLogger(quiet))
	srv := transport.NewServer(transport.Config{}, node, quiet)

	ts := &httptest.Server{
		Listener: lis,
		Config:   &http.Server{Handler: srv.Echo()},
	}
	ts.Start()
	s.servers = append(s.servers, ts)
	return node, addr
}

// twoNodeRing builds a live two-node ring with hand-placed identifiers
// 1 and 4 on a 3-bit ring.
func (s *TransportSuite) twoNodeRing() (*chord.Node, *chord.Node, string, string) {
	s.client = transport.NewClient(quiet)

	ids := map[string]uint64{}
	a, addrA := s.startNode(ids, 1)
	b, addrB := s.startNode(ids, 4)

	hops, err := s.client.Join(s.Ctx, addrA, "", true, false)
	s.Require().NoError(err)
	s.Require().EqualValues(1, hops)

	hops, err = s.client.Join(s.Ctx, addrB, addrA, false, false)
	s.Require().NoError(err)
	s.Require().EqualValues(2, hops)

	return a, b, addrA, addrB
}

func (s *TransportSuite) TestJoinOverHTTP() {
	a, b, addrA, addrB := s.twoNodeRing()

	s.Equal(addrB, a.Successor().Addr)
	s.Equal(addrB, a.Predecessor().Addr)
	s.Equal(addrA, b.Successor().Addr)
	s.Equal(addrA, b.Predecessor().Addr)

	succ, err := s.client.GetSuccessor(s.Ctx, addrA)
	s.NoError(err)
	s.Equal(chord.NodeRef{ID: 4, Addr: addrB}, succ)

	pred, err := s.client.GetPredecessor(s.Ctx, addrB)
	s.NoError(err)
	s.Equal(chord.NodeRef{ID: 1, Addr: addrA}, pred)
}

func (s *TransportSuite) TestLookupOverHTTP() {
	_, _, addrA, addrB := s.twoNodeRing()

	ref, err := s.client.FindSuccessor(s.Ctx, addrA, 3)
	s.NoError(err)
	s.Equal(addrB, ref.Addr)

	ref, err = s.client.FindSuccessor(s.Ctx, addrB, 5)
	s.NoError(err)
	s.Equal(addrA, ref.Addr)

	cpf, err := s.client.ClosestPrecedingFinger(s.Ctx, addrB, 3)
	s.NoError(err)
	s.Equal(uint64(1), cpf.ID)
}

func (s *TransportSuite) TestFingerTableOverHTTP() {
	_, _, addrA, addrB := s.twoNodeRing()

	fingers, err := s.client.GetFingerTable(s.Ctx, addrA)
	s.NoError(err)
	s.Equal([]chord.FingerEntry{
		{Start: 2, Node: 4, Addr: addrB},
		{Start: 3, Node: 4, Addr: addrB},
		{Start: 5, Node: 1, Addr: addrA},
	}, fingers)
}

func (s *TransportSuite) TestDataRoundTrip() {
	_, _, _, addrB := s.twoNodeRing()

	records := []chord.Record{
		{Surname: "Dijkstra", Education: "University of Amsterdam", Awards: 4, Hash: 3},
	}
	s.Require().NoError(s.client.StoreRecords(s.Ctx, addrB, records))

	got, err := s.client.GetData(s.Ctx, addrB, "University of Amsterdam", 2)
	s.NoError(err)
	s.Equal(records, got)

	// Higher award floor filters the record out.
	got, err = s.client.GetData(s.Ctx, addrB, "University of Amsterdam", 5)
	s.NoError(err)
	s.Empty(got)

	// request_data for a joining node at 3 drains the arc (4, 3] off the
	// node at 4, which covers hash 3.
	moved, err := s.client.RequestData(s.Ctx, addrB, 3)
	s.NoError(err)
	s.Equal(records, moved)

	got, err = s.client.GetData(s.Ctx, addrB, "University of Amsterdam", 0)
	s.NoError(err)
	s.Empty(got)
}

func (s *TransportSuite) TestHopCountingFollowsRouteClass() {
	a, _, addrA, _ := s.twoNodeRing()

	_, err := s.client.ClearHops(s.Ctx, addrA)
	s.Require().NoError(err)

	// Accessor RPCs are exempt.
	_, err = s.client.GetSuccessor(s.Ctx, addrA)
	s.Require().NoError(err)
	_, err = s.client.GetPredecessor(s.Ctx, addrA)
	s.Require().NoError(err)
	s.EqualValues(0, a.Hops().Value())

	// Lookup-path RPCs count.
	_, err = s.client.ClosestPrecedingFinger(s.Ctx, addrA, 3)
	s.Require().NoError(err)
	s.EqualValues(1, a.Hops().Value())

	cleared, err := s.client.ClearHops(s.Ctx, addrA)
	s.NoError(err)
	s.EqualValues(1, cleared)
	s.EqualValues(0, a.Hops().Value())
}

func (s *TransportSuite) TestBadRequestMapping() {
	_, _, addrA, _ := s.twoNodeRing()

	_, err := s.client.FindSuccessor(s.Ctx, addrA, 99)
	re, ok := apperr.AsRing(err)
	s.Require().True(ok)
	s.Equal(apperr.CodeInvalidRequest, re.Code)

	_, err = s.client.GetData(s.Ctx, addrA, "", 0)
	re, ok = apperr.AsRing(err)
	s.Require().True(ok)
	s.Equal(apperr.CodeInvalidRequest, re.Code)
}

func (s *TransportSuite) TestUnreachablePeer() {
	s.client = transport.NewClient(quiet)

	_, err := s.client.GetSuccessor(s.Ctx, "127.0.0.1:1")
	re, ok := apperr.AsRing(err)
	s.Require().True(ok)
	s.Equal(apperr.CodePeerUnavailable, re.Code)
}
