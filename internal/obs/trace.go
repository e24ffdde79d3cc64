package obs

import (
	"sync/atomic"
	"time"
)

// SeqGenerator hands out monotonically increasing ids, e.g. for emitted bars.
type SeqGenerator struct {
	next uint64
}

// NewSeqGenerator returns a generator seeded with the given value; zero seeds from the clock
// so ids stay unique across restarts.
func NewSeqGenerator(seed uint64) *SeqGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &SeqGenerator{next: seed}
}

// Next returns the next id.
func (g *SeqGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
