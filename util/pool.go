package util

import "sync"

// BufPool lends fixed-size byte buffers with a cap on how many may be
// borrowed at once.  Each borrowed buffer is owned by exactly one caller
// until it is returned with [BufPool.Put].
type BufPool struct {
	size  int
	limit int

	mu   sync.Mutex
	out  int
	free sync.Pool
}

// NewBufPool returns a pool of size-byte buffers.  limit ≤ 0 means no cap.
func NewBufPool(size, limit int) *BufPool {
	p := &BufPool{size: size, limit: limit}
	p.free.New = func() interface{} {
		buf := make([]byte, p.size)
		return &buf
	}
	return p
}

// Get borrows a buffer.  It reports false when the pool is exhausted.
func (p *BufPool) Get() (*[]byte, bool) {
	p.mu.Lock()
	if p.limit > 0 && p.out >= p.limit {
		p.mu.Unlock()
		return nil, false
	}
	p.out++
	p.mu.Unlock()

	buf := p.free.Get().(*[]byte)
	*buf = (*buf)[:p.size]
	return buf, true
}

// Put returns a borrowed buffer.  nil is ignored.
func (p *BufPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	if p.out > 0 {
		p.out--
	}
	p.mu.Unlock()
	p.free.Put(buf)
}

// Outstanding returns the number of buffers currently borrowed.
func (p *BufPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// Size returns the length of every buffer handed out.
func (p *BufPool) Size() int { return p.size }
