// Package tiled implements the 2-D tiled executor (C8): a square iteration
// space partitioned into tiles, each owning disjoint X/Y axis locks, walked
// in diagonal order, taking each tile's row and column locks with TryLock.
// The walk runs on the calling goroutine, one tile at a time; tiles are not
// processed in parallel. Used by algorithms whose update rule touches a
// (row, col) pair under mutual exclusion — e.g. a dense similarity sweep —
// where plain do_all over rows would serialize on shared column state.
package tiled

import (
	"sync"
	"sync/atomic"

	"github.com/KatanaGraph/katana-sub004/pkg/logger"
	"github.com/KatanaGraph/katana-sub004/pkg/tracer"
)

// Tile is one cell of the tiled iteration space.
type Tile struct {
	X, Y           int
	XRange, YRange [2]uint32
	Updates        atomic.Int64
	RowOffsetCache []uint32
}

func (t *Tile) width() uint32  { return t.XRange[1] - t.XRange[0] }
func (t *Tile) height() uint32 { return t.YRange[1] - t.YRange[0] }

// DenseBody processes every (x, y) pair within a tile unconditionally.
type DenseBody func(tile *Tile, x, y uint32)

// SparseBody processes only the (x, y) pairs a caller-supplied predicate
// selects, for iteration spaces where most cells are known-empty (e.g. a
// sparse adjacency tile rather than a dense matrix tile).
type SparseBody func(tile *Tile, x, y uint32) (skip bool)

// Executor partitions an n x n iteration space into tileSize x tileSize
// tiles and walks them diagonal-by-diagonal; within a diagonal, every tile
// touches a disjoint pair of axis locks. RunDense and RunSparse walk the
// tiles sequentially on the calling goroutine.
type Executor struct {
	n           uint32
	tileSize    uint32
	tilesPerDim int
	tiles       [][]*Tile
	xLocks      []sync.Mutex
	yLocks      []sync.Mutex

	log             logger.Logger
	tr              *tracer.Tracer
	probeFailures   atomic.Int64
	maxUpdatesPer   int64
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithLogger overrides the executor's logger (defaults to the global logger).
func WithLogger(l logger.Logger) Option { return func(e *Executor) { e.log = l } }

// WithTracer overrides the executor's tracer (defaults to a noop tracer).
func WithTracer(t *tracer.Tracer) Option { return func(e *Executor) { e.tr = t } }

// New creates an Executor over an n x n iteration space partitioned into
// tileSize x tileSize tiles (the last row/column of tiles may be smaller
// if tileSize does not evenly divide n).
func New(n, tileSize uint32, opts ...Option) *Executor {
	if tileSize == 0 {
		tileSize = 1
	}
	tilesPerDim := int((n + tileSize - 1) / tileSize)
	e := &Executor{
		n:           n,
		tileSize:    tileSize,
		tilesPerDim: tilesPerDim,
		tiles:       make([][]*Tile, tilesPerDim),
		xLocks:      make([]sync.Mutex, tilesPerDim),
		yLocks:      make([]sync.Mutex, tilesPerDim),
		log:         logger.OrGlobal(nil),
		tr:          tracer.NewNoop(),
	}
	for tx := 0; tx < tilesPerDim; tx++ {
		e.tiles[tx] = make([]*Tile, tilesPerDim)
		for ty := 0; ty < tilesPerDim; ty++ {
			xStart := uint32(tx) * tileSize
			xEnd := min32(xStart+tileSize, n)
			yStart := uint32(ty) * tileSize
			yEnd := min32(yStart+tileSize, n)
			e.tiles[tx][ty] = &Tile{
				X: tx, Y: ty,
				XRange: [2]uint32{xStart, xEnd},
				YRange: [2]uint32{yStart, yEnd},
			}
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// TilesPerDim returns the number of tiles along each axis.
func (e *Executor) TilesPerDim() int { return e.tilesPerDim }

// ProbeFailures returns the number of times a tile's two axis locks could
// not both be acquired, in which case the tile was skipped for that sweep.
func (e *Executor) ProbeFailures() int64 { return e.probeFailures.Load() }

// tryLockTile attempts to acquire both the tile's X and Y axis locks
// without blocking (probing); returns whether it succeeded.
func (e *Executor) tryLockTile(t *Tile) bool {
	if !e.xLocks[t.X].TryLock() {
		return false
	}
	if !e.yLocks[t.Y].TryLock() {
		e.xLocks[t.X].Unlock()
		return false
	}
	return true
}

func (e *Executor) unlockTile(t *Tile) {
	e.yLocks[t.Y].Unlock()
	e.xLocks[t.X].Unlock()
}

// diagonalOrder returns tile coordinates ordered by (x+y) diagonal, the
// walk order that maximizes the chance two concurrently-probed tiles don't
// share an axis lock.
func (e *Executor) diagonalOrder() [][2]int {
	order := make([][2]int, 0, e.tilesPerDim*e.tilesPerDim)
	for d := 0; d < 2*e.tilesPerDim-1; d++ {
		for x := 0; x < e.tilesPerDim; x++ {
			y := d - x
			if y < 0 || y >= e.tilesPerDim {
				continue
			}
			order = append(order, [2]int{x, y})
		}
	}
	return order
}

// RunDense walks every tile along diagonals, probing for its axis locks
// and invoking body for every (x, y) cell in the tile while held. It
// performs at most two sweeps, skipping tiles already at maxUpdatesPerTile
// and stopping after the first sweep if that sweep processed no tile; after
// the sweeps, every tile still short of maxUpdatesPerTile is logged, not
// silently accepted.
func (e *Executor) RunDense(body DenseBody, maxUpdatesPerTile int64) {
	e.maxUpdatesPer = maxUpdatesPerTile
	order := e.diagonalOrder()

	for sweep := 0; sweep < 2; sweep++ {
		progressed := false
		for _, coord := range order {
			tile := e.tiles[coord[0]][coord[1]]
			if tile.Updates.Load() >= maxUpdatesPerTile {
				continue
			}
			if !e.tryLockTile(tile) {
				e.probeFailures.Add(1)
				continue
			}
			for x := tile.XRange[0]; x < tile.XRange[1]; x++ {
				for y := tile.YRange[0]; y < tile.YRange[1]; y++ {
					body(tile, x, y)
					tile.Updates.Add(1)
				}
			}
			e.unlockTile(tile)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	e.checkShortfall(maxUpdatesPerTile)
}

// RunSparse is RunDense's counterpart for iteration spaces where most
// cells should be skipped: body reports skip=true for cells it declines to
// process, and those do not count toward the tile's Updates.
func (e *Executor) RunSparse(body SparseBody, maxUpdatesPerTile int64) {
	e.maxUpdatesPer = maxUpdatesPerTile
	order := e.diagonalOrder()

	for sweep := 0; sweep < 2; sweep++ {
		progressed := false
		for _, coord := range order {
			tile := e.tiles[coord[0]][coord[1]]
			if tile.Updates.Load() >= maxUpdatesPerTile {
				continue
			}
			if !e.tryLockTile(tile) {
				e.probeFailures.Add(1)
				continue
			}
			for x := tile.XRange[0]; x < tile.XRange[1]; x++ {
				for y := tile.YRange[0]; y < tile.YRange[1]; y++ {
					if body(tile, x, y) {
						continue
					}
					tile.Updates.Add(1)
				}
			}
			e.unlockTile(tile)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	e.checkShortfall(maxUpdatesPerTile)
}

func (e *Executor) checkShortfall(maxUpdatesPerTile int64) {
	scope := e.tr.StartActiveSpan("tiled_executor_close")
	defer scope.Close()
	var short int
	for _, row := range e.tiles {
		for _, tile := range row {
			if tile.Updates.Load() < maxUpdatesPerTile {
				short++
				scope.Span().Log("tile_short_of_max_updates", tracer.Tags{
					"x": tile.X, "y": tile.Y, "updates": tile.Updates.Load(), "max": maxUpdatesPerTile,
				})
			}
		}
	}
	if short > 0 {
		e.log.Warn("tiled executor: %d tiles finished short of max updates after two sweeps", short)
	}
}

// Close reports the final probe-failure count, logging it at debug level.
func (e *Executor) Close() int64 {
	n := e.probeFailures.Load()
	e.log.Debug("tiled executor closing: %d probe failures over the run", n)
	return n
}
