// Package idgen implements the ports.IDGenerator seam.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/recordbase/ports"
)

// UUID issues random v4 identifiers, the production default.
type UUID struct{}

func (UUID) New() string { return uuid.New().String() }

// Sequential issues prefix-1, prefix-2, ... so tests get predictable ids.
type Sequential struct {
	prefix string
	n      uint64
}

// NewSequential returns a counter-backed generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(atomic.AddUint64(&s.n, 1), 10)
}

// Reset winds the counter back to zero.
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.n, 0)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
