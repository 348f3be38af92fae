package arena

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/wraftus/flux-engine/memutils"
	"github.com/wraftus/flux-engine/memutils/defrag"
	"github.com/wraftus/flux-engine/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CompactionInfo is used to specify options for a compaction run when populating a
// CompactionContext
type CompactionInfo struct {
	// MaxBytesPerPass is the maximum number of bytes to relocate in each pass. This can be used to restrict
	// the amount of time spent on a single pass. If one pass is performed per frame, then the cost of
	// compaction can be spread out over many frames. 0 means there is no limit.
	MaxBytesPerPass int
	// MaxMovesPerPass is the maximum number of segments to relocate in each pass. 0 means there is no limit.
	MaxMovesPerPass int
}

// CompactionContext is an object that represents a single run of the compaction algorithm, although
// that run may consist of multiple passes that are spread out over an extended period of time. This object
// is populated by Arena.BeginCompaction. CompactionContext objects can be reused for multiple runs.
//
// The arena must not be modified between BeginPass and EndPass.
type CompactionContext struct {
	MaxPassBytes int
	MaxPassMoves int

	arena   *Arena
	context defrag.MetadataDefragContext
	pass    defrag.PassContext
	stats   defrag.DefragmentationStats
}

type arenaSegmentList struct {
	arena *Arena
}

var _ defrag.SegmentList = arenaSegmentList{}

func (l arenaSegmentList) SegmentCount() int {
	return l.arena.metadata.SegmentCount()
}

func (l arenaSegmentList) SegmentAt(index int) metadata.Segment {
	return l.arena.metadata.SegmentAt(index)
}

func (l arenaSegmentList) RelocateSegment(id metadata.SegmentID, dstOffset int) error {
	return l.arena.relocate(id, dstOffset)
}

func (l arenaSegmentList) ReleaseSegment(id metadata.SegmentID) error {
	return l.arena.Release(id)
}

// BeginCompaction populates a CompactionContext for a new compaction run. Passes are then performed
// with CompactionContext.BeginPass and CompactionContext.EndPass until EndPass reports that the
// run is done.
func (a *Arena) BeginCompaction(info CompactionInfo, compaction *CompactionContext) error {
	a.log().Debug("Arena::BeginCompaction",
		slog.Int("MaxBytesPerPass", info.MaxBytesPerPass),
		slog.Int("MaxMovesPerPass", info.MaxMovesPerPass),
	)

	if !a.IsInitialized() {
		return ErrNotInitialized
	}

	if info.MaxBytesPerPass < 0 || info.MaxMovesPerPass < 0 {
		return errors.Wrapf(ErrInvalidOptions, "pass budgets must not be negative: bytes %d, moves %d", info.MaxBytesPerPass, info.MaxMovesPerPass)
	}

	compaction.MaxPassBytes = info.MaxBytesPerPass
	compaction.MaxPassMoves = info.MaxMovesPerPass

	if compaction.MaxPassBytes == 0 {
		compaction.MaxPassBytes = math.MaxInt
	}

	if compaction.MaxPassMoves == 0 {
		compaction.MaxPassMoves = math.MaxInt
	}

	compaction.arena = a
	compaction.stats = defrag.DefragmentationStats{}
	compaction.context.SegmentList = arenaSegmentList{arena: a}
	compaction.context.Handler = compaction.completePassForMove
	compaction.context.Init()

	return nil
}

// BeginPass collects the relocations to be performed for a single pass of the compaction run and
// returns them. Before calling EndPass, the caller may change a move's MoveOperation to
// defrag.DefragmentationMoveIgnore to keep the segment where it is for the rest of the run, or to
// defrag.DefragmentationMoveDestroy to release the segment instead of relocating it.
func (c *CompactionContext) BeginPass() []defrag.DefragmentationMove {
	c.logger().Debug("CompactionContext::BeginPass")

	c.pass = defrag.PassContext{
		MaxPassBytes: c.MaxPassBytes,
		MaxPassMoves: c.MaxPassMoves,
	}

	if c.arena == nil || !c.arena.IsInitialized() {
		return nil
	}

	c.context.CollectMoves(&c.pass)
	moves := c.context.Moves()

	c.logger().Debug("  Collected moves", slog.Int("Count", len(moves)), slog.Int("Bytes", c.pass.Stats.BytesMoved))
	return moves
}

// EndPass applies the relocations collected in BeginPass. It returns true if the compaction run has
// ended, or false if additional passes are necessary. Any errors that occurred while applying
// relocations are returned, but the moves that could be applied have been.
func (c *CompactionContext) EndPass() (bool, error) {
	c.logger().Debug("CompactionContext::EndPass")

	if c.arena == nil || !c.arena.IsInitialized() {
		return true, ErrNotInitialized
	}

	if len(c.context.Moves()) == 0 {
		return true, nil
	}

	err := c.context.CompletePass(&c.pass)
	c.stats.Add(c.pass.Stats)

	memutils.DebugValidate(c.arena)
	return false, err
}

// Finish reports the totals of the compaction run. It should be called whenever EndPass returns true.
func (c *CompactionContext) Finish(outStats *defrag.DefragmentationStats) {
	c.logger().Debug("CompactionContext::Finish",
		slog.Int("BytesMoved", c.stats.BytesMoved),
		slog.Int("SegmentsMoved", c.stats.SegmentsMoved),
		slog.Int("SegmentsReleased", c.stats.SegmentsReleased),
	)

	if outStats != nil {
		*outStats = c.stats
	}
}

func (c *CompactionContext) logger() *slog.Logger {
	if c.arena == nil {
		return discardLogger
	}
	return c.arena.log()
}

func (c *CompactionContext) completePassForMove(move defrag.DefragmentationMove) error {
	c.logger().LogAttrs(context.Background(), slog.LevelDebug, "    Completed move",
		slog.String("Operation", move.MoveOperation.String()),
		slog.Uint64("ID", uint64(move.ID)),
		slog.Int("SrcOffset", move.SrcOffset),
		slog.Int("DstOffset", move.DstOffset),
	)

	return nil
}
