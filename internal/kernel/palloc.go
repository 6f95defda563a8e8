package kernel

import (
	"errors"
	"sync"
)

// ErrNoPage is returned by Create when the thread arena is exhausted.
// It is the only recoverable failure in this package; everything else
// is a contract violation and halts.
var ErrNoPage = errors.New("kernel: out of thread pages")

// page is one arena slot of thread storage.
type page struct {
	idx int
}

// pool is a fixed-size arena standing in for the physical page
// allocator that backs thread control blocks. Slots are handles, not
// raw memory; allocation failure is the creation-time resource limit.
type pool struct {
	mu   sync.Mutex
	free []int
	size int
}

func newPool(size int) *pool {
	p := &pool{size: size, free: make([]int, 0, size)}
	for i := size - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

// allocZeroed takes a slot, or returns nil when none is available.
func (p *pool) allocZeroed() *page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return &page{idx: idx}
}

func (p *pool) freePage(pg *page) {
	if pg == nil {
		kernelPanic("free of nil page")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.free {
		if f == pg.idx {
			kernelPanic("double free of thread page %d", pg.idx)
		}
	}
	p.free = append(p.free, pg.idx)
}

// used reports the number of allocated slots.
func (p *pool) used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - len(p.free)
}
