package chord

import "context"

// NodeRef identifies a peer by ring id and dialable address.
type NodeRef struct {
	ID   uint64 `json:"node_id"`
	Addr string `json:"ip_addr"`
}

// Transport is the client side of the peer RPC surface. Every call may block
// until the peer answers; implementations must be safe for concurrent use.
// A node talks to itself through the same interface where the protocol does.
type Transport interface {
	FindSuccessor(ctx context.Context, addr string, keyID uint64) (NodeRef, error)
	GetSuccessor(ctx context.Context, addr string) (NodeRef, error)
	GetPredecessor(ctx context.Context, addr string) (NodeRef, error)
	SetSuccessor(ctx context.Context, addr, successorAddr string) error
	SetPredecessor(ctx context.Context, addr, predecessorAddr string) error
	ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (NodeRef, error)
	UpdateFingerTable(ctx context.Context, addr, joiningAddr string, index int) error
	FixFingerTable(ctx context.Context, addr, leaverAddr, successorAddr string, index int) error
	RequestData(ctx context.Context, addr string, nodeID uint64) ([]Record, error)
	StoreRecords(ctx context.Context, addr string, records []Record) error
}

// RecordStore is the node-local key-range store. The node treats it as a
// black box; it must be safe for concurrent use from RPC handlers.
type RecordStore interface {
	// Store persists records; existing records are kept.
	Store(ctx context.Context, records []Record) error

	// FetchByCriteria returns the records of one education with at least
	// minAwards awards.
	FetchByCriteria(ctx context.Context, education string, minAwards int) ([]Record, error)

	// FetchAndDeleteAll atomically removes and returns every record.
	FetchAndDeleteAll(ctx context.Context) ([]Record, error)

	// FetchAndDeleteArc atomically removes and returns the records whose
	// hash lies on the cyclic arc (lo, hi].
	FetchAndDeleteArc(ctx context.Context, lo, hi uint64) ([]Record, error)
}
