package defrag

import (
	"errors"
	"fmt"

	"github.com/wraftus/flux-engine/memutils"
	"github.com/wraftus/flux-engine/memutils/metadata"
)

// MetadataDefragContext is the core of the defragmentation logic for memutils. One of these must be created
// and initialized for each defragmentation run, which will then consist of multiple passes.
//
// Each pass walks the SegmentList in offset order and plans to slide each segment down to the lowest
// offset that follows the previous segment and satisfies the segment's alignment. Segments that have been
// pinned by a DefragmentationMoveIgnore operation stay where they are for the rest of the run.
type MetadataDefragContext struct {
	// Handler is an optional method that will be called after each move is applied in CompletePass
	Handler DefragmentOperationHandler
	// SegmentList is the memory object this context exists to defragment
	SegmentList SegmentList

	moves     []DefragmentationMove
	immovable map[metadata.SegmentID]struct{}
}

// Init sets up this MetadataDefragContext to be used in a fresh defragmentation run. MetadataDefragContext can
// be reused for multiple runs, as long as this method is called prior to beginning each run, including the first
func (c *MetadataDefragContext) Init() {
	if c.SegmentList == nil {
		panic("attempted to init defragmentation context without a segment list")
	}

	c.moves = c.moves[:0]
	if c.immovable == nil {
		c.immovable = make(map[metadata.SegmentID]struct{})
	}
	clear(c.immovable)
}

// Moves returns the list of relocation operations most recently collected with CollectMoves
func (c *MetadataDefragContext) Moves() []DefragmentationMove {
	return c.moves
}

// IsImmovable returns true if the segment with the provided id has been pinned for the rest of this run
func (c *MetadataDefragContext) IsImmovable(id metadata.SegmentID) bool {
	_, immovable := c.immovable[id]
	return immovable
}

// CollectMoves will retrieve a single pass's worth of DefragmentationMove operations to be completed.
// Those operations can be retrieved from MetadataDefragContext.Moves. The return value is true if
// collection stopped early because the pass budget was exhausted.
func (c *MetadataDefragContext) CollectMoves(pass *PassContext) bool {
	c.moves = c.moves[:0]

	sortedOffset := 0
	for index := 0; index < c.SegmentList.SegmentCount(); index++ {
		segment := c.SegmentList.SegmentAt(index)

		if c.IsImmovable(segment.ID) {
			sortedOffset = segment.End()
			continue
		}

		dstOffset := memutils.AlignUp(sortedOffset, segment.Alignment)
		if dstOffset >= segment.Offset {
			sortedOffset = segment.End()
			continue
		}

		counter := pass.checkCounters(segment.Size)
		switch counter {
		case defragCounterIgnore:
			// Skipped segments stay put for this pass
			sortedOffset = segment.End()
			continue
		case defragCounterEnd:
			return true
		case defragCounterPass:
			break
		default:
			panic(fmt.Sprintf("unexpected defrag counter status: %s", counter.String()))
		}

		c.moves = append(c.moves, DefragmentationMove{
			MoveOperation: DefragmentationMoveCopy,
			ID:            segment.ID,
			Size:          segment.Size,
			SrcOffset:     segment.Offset,
			DstOffset:     dstOffset,
		})
		sortedOffset = dstOffset + segment.Size

		if pass.incrementCounters(segment.Size) {
			return true
		}
	}

	return false
}

// CompletePass should be called after a pass's moves have been collected with CollectMoves and
// the callers have had the chance to change each move's MoveOperation away from DefragmentationMoveCopy.
//
// Moves are applied in offset order. A DefragmentationMoveCopy move relocates the segment, a
// DefragmentationMoveDestroy move releases it. A DefragmentationMoveIgnore move pins the segment for the
// rest of the run: because the moves after it were planned around the ignored segment's destination, they are
// dropped and will be planned again in the next pass. Stats are corrected for every move that did not relocate
// bytes. Errors from the SegmentList or the Handler are combined with errors.Join.
func (c *MetadataDefragContext) CompletePass(pass *PassContext) error {
	var allErrors []error

	for i := 0; i < len(c.moves); i++ {
		move := c.moves[i]

		var err error
		switch move.MoveOperation {
		case DefragmentationMoveCopy:
			err = c.SegmentList.RelocateSegment(move.ID, move.DstOffset)
			if err != nil {
				pass.Stats.BytesMoved -= move.Size
				pass.Stats.SegmentsMoved--
			}

		case DefragmentationMoveDestroy:
			pass.Stats.BytesMoved -= move.Size
			pass.Stats.SegmentsMoved--

			err = c.SegmentList.ReleaseSegment(move.ID)
			if err == nil {
				pass.Stats.BytesReleased += move.Size
				pass.Stats.SegmentsReleased++
			}

		case DefragmentationMoveIgnore:
			c.immovable[move.ID] = struct{}{}

			for _, dropped := range c.moves[i:] {
				pass.Stats.BytesMoved -= dropped.Size
				pass.Stats.SegmentsMoved--
			}
			c.moves = c.moves[:i+1]

		default:
			panic(fmt.Sprintf("unexpected defragmentation move operation: %s", move.MoveOperation.String()))
		}

		if err != nil {
			allErrors = append(allErrors, err)
			continue
		}

		if c.Handler != nil {
			err = c.Handler(move)
			if err != nil {
				allErrors = append(allErrors, err)
			}
		}
	}

	c.moves = c.moves[:0]

	if len(allErrors) == 1 {
		return allErrors[0]
	}

	if len(allErrors) > 0 {
		return errors.Join(allErrors...)
	}

	return nil
}
