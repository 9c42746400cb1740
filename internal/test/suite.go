// Package test carries the fixtures ChordSeek's suites share: a fresh
// context and silent logger per test, and identifier spaces with
// hand-placed node ids so ring scenarios stay deterministic instead of
// depending on where SHA-256 happens to drop an address.
package test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/DmMeta/ChordSeek/internal/ring"
)

// Suite is the base of every ChordSeek test suite.
type Suite struct {
	suite.Suite
	Ctx context.Context
	Log *slog.Logger
}

// SetupTest is called before each test in the suite.
func (s *Suite) SetupTest() {
	s.Ctx = context.Background()
	s.Log = Logger()
}

// NewSuite creates a new test suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Logger returns a logger for fixtures that must stay silent under go test.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Space builds an identifier space whose addresses resolve through ids
// instead of SHA-256. Scenario tests place nodes at exact ring positions
// (say 1, 4 and 6 on a 3-bit ring) and assert literal finger tables, which
// a real hash cannot provide.
func Space(bits int, ids map[string]uint64) ring.Space {
	return ring.NewWithIDFn(bits, func(key string) uint64 { return ids[key] })
}

// Run is a helper function to run a suite from a standard Test* function.
func Run(t *testing.T, s suite.TestingSuite) {
	suite.Run(t, s)
}
