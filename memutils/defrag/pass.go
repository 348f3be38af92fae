package defrag

import "fmt"

// PassContext holds the budget for one compaction pass and the moves counted against it so far.
// CollectMoves charges each planned slide-down move to the budget; once either limit is reached the
// pass stops planning and the remaining segments wait for the next pass.
type PassContext struct {
	// MaxPassBytes caps the total size of the segments slid down in one pass. A segment larger
	// than the bytes left in the budget is skipped and keeps its offset for this pass.
	MaxPassBytes int
	// MaxPassMoves caps the number of segments slid down in one pass
	MaxPassMoves int
	// Stats counts the moves planned for this pass. CompletePass corrects it for moves that
	// were ignored or turned into releases.
	Stats           DefragmentationStats
	skippedSegments int
}

// A pass gives up after skipping this many segments in a row that did not fit the byte budget
const defragMaxSegmentsToSkip = 16

func (p *PassContext) checkCounters(bytes int) defragCounterStatus {
	if bytes > p.MaxPassBytes-p.Stats.BytesMoved {
		p.skippedSegments++
		if p.skippedSegments < defragMaxSegmentsToSkip {
			return defragCounterIgnore
		}
		return defragCounterEnd
	}

	p.skippedSegments = 0
	return defragCounterPass
}

// incrementCounters charges a planned move to the budget and returns true once the budget is spent
func (p *PassContext) incrementCounters(bytes int) bool {
	p.Stats.BytesMoved += bytes
	p.Stats.SegmentsMoved++

	if p.Stats.SegmentsMoved >= p.MaxPassMoves || p.Stats.BytesMoved >= p.MaxPassBytes {
		if p.Stats.SegmentsMoved != p.MaxPassMoves && p.Stats.BytesMoved != p.MaxPassBytes {
			panic(fmt.Sprintf("pass budget overrun: bytes %d of %d, moves %d of %d", p.Stats.BytesMoved, p.MaxPassBytes, p.Stats.SegmentsMoved, p.MaxPassMoves))
		}

		return true
	}

	return false
}
