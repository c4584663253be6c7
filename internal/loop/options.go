// Package loop implements the parallel loop primitives (C7) that drive
// every algorithm in internal/algo: do_all for a fixed, closed item set;
// for_each for a frontier that grows as bodies push new work; on_each for
// a once-per-thread callback (used for topology-aware initialization).
package loop

import "github.com/KatanaGraph/katana-sub004/internal/worklist"

// Options is a closed struct mirroring spec.md's loop option table exactly
// — no open variadic "tag soup", per the re-architecture note that flagged
// the original's functor-tag vocabulary as worth tightening in a rewrite.
// Unused fields take their zero value; DoAll ignores the for_each-only
// fields (WL, DetID, DetParallelBreak, ParallelBreak).
type Options[T any] struct {
	LoopName                 string
	ChunkSize                int
	Steal                    bool
	NoStats                  bool
	NoPushes                 bool
	DisableConflictDetection bool
	WL                       worklist.Worklist[T]
	PerIterAlloc             bool
	ParallelBreak            bool
	DetID                    func(T) uint64
	DetParallelBreak         func(T) bool
	LocalState               func() any
	FixedNeighborhood        bool
	IntentToRead             bool
}

func (o Options[T]) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return 32
}
