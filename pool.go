package pipapo

import (
	"runtime"
	"sync/atomic"

	"github.com/gaissmai/pipapo/internal/bitset"
)

// scratch holds the two result bitmaps of a lookup. Both are all zero
// while the scratch is not in use.
type scratch struct {
	res  bitset.BitSet
	fill bitset.BitSet

	inUse atomic.Bool

	// keep neighboring slots off the same cache line
	_ [32]byte
}

// scratchPool is a fixed set of scratches of one bucket size, allocated
// up front on the control path. Get claims a free slot with a CAS and
// never allocates.
type scratchPool struct {
	bsize int // words per bitmap
	slots []scratch

	hint        atomic.Uint32 // slot to start the next search at
	currentLive atomic.Int64  // number of scratches currently in use
	contended   atomic.Int64  // searches finding every slot in use
}

// scratchSlots is the number of scratches per pool. Lookups preempted
// while holding a slot leave the others to the running goroutines.
func scratchSlots() int {
	return 2 * runtime.GOMAXPROCS(0)
}

// newScratchPool creates a pool of n scratches with bitmaps of bsize words.
func newScratchPool(bsize, n int) *scratchPool {
	p := &scratchPool{
		bsize: bsize,
		slots: make([]scratch, n),
	}

	buf := make([]uint64, 2*bsize*n)
	for i := range p.slots {
		b := buf[2*bsize*i : 2*bsize*(i+1)]
		p.slots[i].res = b[:bsize:bsize]
		p.slots[i].fill = b[bsize:]
	}
	return p
}

// Get claims a zeroed scratch. If all slots are in use it yields and
// retries until one is put back.
func (p *scratchPool) Get() *scratch {
	n := uint32(len(p.slots))
	start := p.hint.Add(1)

	for {
		for i := range n {
			s := &p.slots[(start+i)%n]
			if !s.inUse.Load() && s.inUse.CompareAndSwap(false, true) {
				p.currentLive.Add(1)
				return s
			}
		}
		p.contended.Add(1)
		runtime.Gosched()
	}
}

// Put releases s. The caller must have cleared both bitmaps.
func (p *scratchPool) Put(s *scratch) {
	p.currentLive.Add(-1)
	s.inUse.Store(false)
}

// Stats returns the number of currently live (checked-out) scratches
// and the number of slots.
func (p *scratchPool) Stats() (live int64, total int64) {
	if p == nil {
		return 0, 0
	}
	return p.currentLive.Load(), int64(len(p.slots))
}
