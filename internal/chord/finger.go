package chord

import "github.com/DmMeta/ChordSeek/internal/ring"

// FingerEntry is one routing shortcut. Start is fixed at construction;
// Node/Addr track the ring successor of Start as membership changes.
type FingerEntry struct {
	Start uint64 `json:"start"`
	Node  uint64 `json:"node"`
	Addr  string `json:"node_ip"`
}

// fingerTable holds the m shortcut pointers of one node. Access is guarded
// by the owning Node's mutex.
type fingerTable struct {
	entries []FingerEntry
}

func newFingerTable(space ring.Space, ownID uint64) *fingerTable {
	entries := make([]FingerEntry, space.Bits())
	for i := range entries {
		entries[i].Start = space.Add(ownID, uint64(1)<<uint(i))
	}
	return &fingerTable{entries: entries}
}

func (ft *fingerTable) len() int { return len(ft.entries) }

func (ft *fingerTable) entry(i int) FingerEntry { return ft.entries[i] }

func (ft *fingerTable) set(i int, node uint64, addr string) {
	ft.entries[i].Node = node
	ft.entries[i].Addr = addr
}

// snapshot copies the table for callers outside the node's lock.
func (ft *fingerTable) snapshot() []FingerEntry {
	out := make([]FingerEntry, len(ft.entries))
	copy(out, ft.entries)
	return out
}

// clear drops the routing pointers, keeping the fixed starts.
func (ft *fingerTable) clear() {
	for i := range ft.entries {
		ft.entries[i].Node = 0
		ft.entries[i].Addr = ""
	}
}
