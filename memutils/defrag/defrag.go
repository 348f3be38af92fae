package defrag

// DefragmentationStats contains basic metrics for defragmentation over time
type DefragmentationStats struct {
	// BytesMoved is the number of bytes that have been successfully relocated
	BytesMoved int
	// SegmentsMoved is the number of successful relocations
	SegmentsMoved int
	// BytesReleased is the number of bytes belonging to segments that were released by a
	// DefragmentationMoveDestroy operation instead of being relocated
	BytesReleased int
	// SegmentsReleased is the number of segments released by a DefragmentationMoveDestroy operation
	SegmentsReleased int
}

func (s *DefragmentationStats) Add(stats DefragmentationStats) {
	s.BytesMoved += stats.BytesMoved
	s.SegmentsMoved += stats.SegmentsMoved
	s.BytesReleased += stats.BytesReleased
	s.SegmentsReleased += stats.SegmentsReleased
}

type defragCounterStatus uint32

const (
	defragCounterPass defragCounterStatus = iota
	defragCounterIgnore
	defragCounterEnd
)

var defragCounterStatusMapping = map[defragCounterStatus]string{
	defragCounterPass:   "defragCounterPass",
	defragCounterIgnore: "defragCounterIgnore",
	defragCounterEnd:    "defragCounterEnd",
}

func (s defragCounterStatus) String() string {
	return defragCounterStatusMapping[s]
}
