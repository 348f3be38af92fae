package metadata

import "math"

// SegmentID is a stable, never-reused handle for a claimed segment. Unlike offsets, ids survive
// compaction.
type SegmentID uint64

const (
	// NoSegment is the zero SegmentID and never names a live segment
	NoSegment SegmentID = 0
	// MaxSegmentID is the first id that will never be handed out. When the id counter reaches
	// this value, further claims fail instead of wrapping.
	MaxSegmentID SegmentID = math.MaxUint64
)

// Segment describes one claimed byte range within a block
type Segment struct {
	Offset    int
	Size      int
	Alignment uint
	ID        SegmentID
}

// End returns the offset of the first byte after the segment
func (s Segment) End() int {
	return s.Offset + s.Size
}
