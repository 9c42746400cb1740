// Package seed pushes a crawled dataset into a live ring: every university
// group is hashed, routed to its owner through an arbitrary node, and
// stored there.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/DmMeta/ChordSeek/internal/chord"
	"github.com/DmMeta/ChordSeek/internal/ring"
)

// Scientist is one dataset entry, grouped by the university it belongs to.
type Scientist struct {
	Surname   string `json:"Surname"`
	Education string `json:"Education"`
	Awards    int    `json:"Awards"`
}

// Dataset maps a university to its scientists.
type Dataset map[string][]Scientist

// Load reads a dataset file produced by the crawler.
func Load(path string) (Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decoding dataset %s: %w", path, err)
	}
	return ds, nil
}

// Seeder distributes dataset groups across a ring.
type Seeder struct {
	space     ring.Space
	transport chord.Transport
	log       *slog.Logger
	rng       *rand.Rand
}

func New(space ring.Space, transport chord.Transport, log *slog.Logger) *Seeder {
	return &Seeder{
		space:     space,
		transport: transport,
		log:       log,
		rng:       rand.New(rand.NewSource(rand.Int63())),
	}
}

// Run routes every university group to its owning node and stores it
// there. Groups that fail are logged and skipped; Run reports how many
// groups landed.
func (s *Seeder) Run(ctx context.Context, ds Dataset, nodes []string) (int, error) {
	if len(nodes) == 0 {
		return 0, fmt.Errorf("no ring nodes given")
	}

	seeded := 0
	for university, scientists := range ds {
		hash := s.space.ID(university)
		entry := nodes[s.rng.Intn(len(nodes))]

		owner, err := s.transport.FindSuccessor(ctx, entry, hash)
		if err != nil {
			s.log.Error("routing group failed", "university", university, "entry", entry, "error", err)
			continue
		}

		records := make([]chord.Record, 0, len(scientists))
		for _, sc := range scientists {
			records = append(records, chord.Record{
				Surname:   sc.Surname,
				Education: sc.Education,
				Awards:    sc.Awards,
				Hash:      hash,
			})
		}

		if err := s.transport.StoreRecords(ctx, owner.Addr, records); err != nil {
			s.log.Error("storing group failed", "university", university, "owner", owner.Addr, "error", err)
			continue
		}
		s.log.Debug("group stored", "university", university, "hash", hash, "owner", owner.Addr, "records", len(records))
		seeded++
	}

	s.log.Info("seeding finished", "groups", len(ds), "stored", seeded)
	return seeded, nil
}
