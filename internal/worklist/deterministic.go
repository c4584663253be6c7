package worklist

import (
	"sort"
	"sync"
)

// Deterministic orders items by a stable DetID so repeated runs over the
// same input produce the same processing order regardless of scheduling —
// required for algorithms whose result depends on iteration order (e.g.
// union-find with path compression). ParallelBreak, when set, marks items
// that must run in isolation (no other item from the same round may run
// concurrently with it): Sort moves those items to the front of the round
// and CautiousCount reports how many there are, so a caller can drain them
// one at a time before the rest of the round, the "cautious point" split.
type Deterministic[T any] struct {
	mu              sync.Mutex
	detID           func(T) uint64
	parallelBreak   func(T) bool
	round           []T
	pos             int
}

// NewDeterministic creates a Deterministic worklist. detID must be a total,
// stable function of the item's identity (not its contents) so ordering is
// reproducible across runs.
func NewDeterministic[T any](detID func(T) uint64, parallelBreak func(T) bool) *Deterministic[T] {
	return &Deterministic[T]{detID: detID, parallelBreak: parallelBreak}
}

// Push adds item to the pending round. The round is NOT sorted until Sort
// is called, so bulk Push is O(1) amortized.
func (w *Deterministic[T]) Push(item T) {
	w.mu.Lock()
	w.round = append(w.round, item)
	w.mu.Unlock()
}

// Sort orders the pending round by DetID, splitting cautious-point items
// (ParallelBreak == true) to the front so callers can drain them serially
// before processing the remainder in parallel.
func (w *Deterministic[T]) Sort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	sort.SliceStable(w.round, func(i, j int) bool {
		ci, cj := w.isCautious(w.round[i]), w.isCautious(w.round[j])
		if ci != cj {
			return ci // cautious items first
		}
		return w.detID(w.round[i]) < w.detID(w.round[j])
	})
}

func (w *Deterministic[T]) isCautious(item T) bool {
	return w.parallelBreak != nil && w.parallelBreak(item)
}

// Pop removes and returns the next item of the round in its current order
// (deterministic once Sort has been called); Pop itself does not sort.
func (w *Deterministic[T]) Pop() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero T
	if w.pos >= len(w.round) {
		return zero, false
	}
	v := w.round[w.pos]
	w.pos++
	return v, true
}

// Empty reports whether the current round is fully drained.
func (w *Deterministic[T]) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos >= len(w.round)
}

// CautiousCount returns how many items at the front of the (sorted) round
// are cautious-point items that must run serially.
func (w *Deterministic[T]) CautiousCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, item := range w.round {
		if !w.isCautious(item) {
			break
		}
		n++
	}
	return n
}
