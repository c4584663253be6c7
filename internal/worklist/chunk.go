package worklist

import (
	"sync"

	"github.com/KatanaGraph/katana-sub004/pkg/collections"
)

// chunk is a fixed-capacity batch of items, stolen or handed off as a unit
// rather than item-by-item — this is what makes ChunkFIFO/ChunkLIFO
// cheaper under contention than a plain per-item queue.
type chunk[T any] struct {
	items []T
}

func newChunk[T any](size int) *chunk[T] { return &chunk[T]{items: make([]T, 0, size)} }
func (c *chunk[T]) full(size int) bool   { return len(c.items) >= size }

// perSocketChunked is the shared machinery behind ChunkFIFO and ChunkLIFO:
// each socket owns a local "building" chunk items are pushed into, plus a
// collection of completed chunks other sockets may steal from as a whole
// unit. lifo selects whether items within a chunk pop in stack or queue
// order; completed chunks are always taken in queue order.
type perSocketChunked[T any] struct {
	mu        sync.Mutex
	chunkSize int
	numSockets int
	building  []*chunk[T]
	ready     []*collections.Queue[*chunk[T]] // one per socket; chunk.Stack would serve ChunkLIFO equally well
	lifo      bool
	current   []*chunk[T] // in-progress pop chunk per socket, drained item-by-item before pulling the next ready chunk
}

func newPerSocketChunked[T any](numSockets, chunkSize int, lifo bool) *perSocketChunked[T] {
	if numSockets <= 0 {
		numSockets = 1
	}
	if chunkSize <= 0 {
		chunkSize = 64
	}
	p := &perSocketChunked[T]{
		chunkSize:  chunkSize,
		numSockets: numSockets,
		building:   make([]*chunk[T], numSockets),
		ready:      make([]*collections.Queue[*chunk[T]], numSockets),
		current:    make([]*chunk[T], numSockets),
		lifo:       lifo,
	}
	for i := range p.building {
		p.building[i] = newChunk[T](chunkSize)
		p.ready[i] = collections.NewQueue[*chunk[T]](4)
	}
	return p
}

// pushTo appends item to socket's building chunk, rotating it into the
// ready queue once full.
func (p *perSocketChunked[T]) pushTo(socket int, item T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.building[socket]
	b.items = append(b.items, item)
	if b.full(p.chunkSize) {
		p.ready[socket].Enqueue(b)
		p.building[socket] = newChunk[T](p.chunkSize)
	}
}

// popFrom pops the next item for socket, preferring its own completed
// chunks and falling back to stealing a whole chunk from another socket
// (round-robin) when its own queue and in-progress chunk are empty.
func (p *perSocketChunked[T]) popFrom(socket int) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur := p.current[socket]; cur != nil && len(cur.items) > 0 {
		return p.takeFromCurrent(socket)
	}
	if ch, ok := p.ready[socket].Dequeue(); ok {
		p.current[socket] = ch
		return p.takeFromCurrent(socket)
	}
	// own building chunk may have a partial batch worth draining before
	// stealing elsewhere, if nothing else is ready
	if b := p.building[socket]; len(b.items) > 0 {
		p.current[socket] = b
		p.building[socket] = newChunk[T](p.chunkSize)
		return p.takeFromCurrent(socket)
	}
	return p.stealFrom(socket)
}

func (p *perSocketChunked[T]) takeFromCurrent(socket int) (T, bool) {
	cur := p.current[socket]
	var zero T
	if cur == nil || len(cur.items) == 0 {
		return zero, false
	}
	if p.lifo {
		last := len(cur.items) - 1
		v := cur.items[last]
		cur.items = cur.items[:last]
		return v, true
	}
	v := cur.items[0]
	cur.items = cur.items[1:]
	return v, true
}

func (p *perSocketChunked[T]) stealFrom(socket int) (T, bool) {
	var zero T
	for i := 1; i < p.numSockets; i++ {
		victim := (socket + i) % p.numSockets
		if ch, ok := p.ready[victim].Dequeue(); ok {
			p.current[socket] = ch
			return p.takeFromCurrent(socket)
		}
		if b := p.building[victim]; len(b.items) > 0 {
			p.current[socket] = b
			p.building[victim] = newChunk[T](p.chunkSize)
			return p.takeFromCurrent(socket)
		}
	}
	return zero, false
}

func (p *perSocketChunked[T]) empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < p.numSockets; i++ {
		if p.current[i] != nil && len(p.current[i].items) > 0 {
			return false
		}
		if !p.ready[i].IsEmpty() {
			return false
		}
		if len(p.building[i].items) > 0 {
			return false
		}
	}
	return true
}

// ChunkFIFO is a per-socket, chunk-of-K FIFO worklist: items pushed by a
// socket drain in the order they were pushed, with whole completed chunks
// available for other sockets to steal.
type ChunkFIFO[T any] struct {
	p          *perSocketChunked[T]
	nextSocket int
}

// NewChunkFIFO creates a ChunkFIFO with the given socket count and chunk size.
func NewChunkFIFO[T any](numSockets, chunkSize int) *ChunkFIFO[T] {
	return &ChunkFIFO[T]{p: newPerSocketChunked[T](numSockets, chunkSize, false)}
}

// Push adds item to socket 0's queue; use PushSocket to target another
// socket.
func (w *ChunkFIFO[T]) Push(item T) { w.PushSocket(w.nextSocket, item) }

// PushSocket adds item to a specific socket's queue.
func (w *ChunkFIFO[T]) PushSocket(socket int, item T) { w.p.pushTo(socket, item) }

// Pop removes and returns the next item, stealing across sockets as needed.
func (w *ChunkFIFO[T]) Pop() (T, bool) { return w.p.popFrom(0) }

// PopSocket removes and returns the next item for a specific socket.
func (w *ChunkFIFO[T]) PopSocket(socket int) (T, bool) { return w.p.popFrom(socket) }

// Empty reports whether every socket's queues and chunks are drained.
func (w *ChunkFIFO[T]) Empty() bool { return w.p.empty() }

// ChunkLIFO is the stack-ordered counterpart of ChunkFIFO: within a chunk,
// the most recently pushed item pops first (depth-first exploration order,
// useful for algorithms like DFS-shaped worklists that benefit from cache
// locality over strict breadth order).
type ChunkLIFO[T any] struct {
	p *perSocketChunked[T]
}

// NewChunkLIFO creates a ChunkLIFO with the given socket count and chunk size.
func NewChunkLIFO[T any](numSockets, chunkSize int) *ChunkLIFO[T] {
	return &ChunkLIFO[T]{p: newPerSocketChunked[T](numSockets, chunkSize, true)}
}

func (w *ChunkLIFO[T]) Push(item T)                       { w.p.pushTo(0, item) }
func (w *ChunkLIFO[T]) PushSocket(socket int, item T)     { w.p.pushTo(socket, item) }
func (w *ChunkLIFO[T]) Pop() (T, bool)                    { return w.p.popFrom(0) }
func (w *ChunkLIFO[T]) PopSocket(socket int) (T, bool)    { return w.p.popFrom(socket) }
func (w *ChunkLIFO[T]) Empty() bool                       { return w.p.empty() }
