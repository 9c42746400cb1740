package chord

import (
	"context"
	"fmt"

	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// RequestData hands over the records a joining predecessor now owns:
// everything outside this node's shrunken arc of ownership, i.e. records
// whose hash lies on (self, joiningID]. The records are deleted here in
// the same store transaction that selects them.
func (n *Node) RequestData(ctx context.Context, joiningID uint64) ([]Record, error) {
	if !n.space.Contains(joiningID) {
		return nil, apperr.Invalid("node id %d outside identifier space of %d bits", joiningID, n.space.Bits())
	}

	records, err := n.store.FetchAndDeleteArc(ctx, n.id, joiningID)
	if err != nil {
		return nil, fmt.Errorf("draining records for joining node %d: %w", joiningID, err)
	}
	n.log.Debug("records handed to joining predecessor", "joining_node", joiningID, "count", len(records))
	return records, nil
}

// StoreRecords persists records pushed by a peer.
func (n *Node) StoreRecords(ctx context.Context, records []Record) error {
	if err := n.store.Store(ctx, records); err != nil {
		return fmt.Errorf("storing %d records: %w", len(records), err)
	}
	return nil
}

// GetData returns the locally held records of one education with at least
// minAwards awards.
func (n *Node) GetData(ctx context.Context, education string, minAwards int) ([]Record, error) {
	records, err := n.store.FetchByCriteria(ctx, education, minAwards)
	if err != nil {
		return nil, fmt.Errorf("fetching records for %q: %w", education, err)
	}
	return records, nil
}
