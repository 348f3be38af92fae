package memutils

import "math"

// Statistics is a cheap summary of one or more arenas. Values from several arenas can be
// summed together with AddStatistics.
type Statistics struct {
	ArenaCount    int
	SegmentCount  int
	CapacityBytes int
	ClaimedBytes  int
}

func (s *Statistics) Clear() {
	s.ArenaCount = 0
	s.SegmentCount = 0
	s.CapacityBytes = 0
	s.ClaimedBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ArenaCount += other.ArenaCount
	s.SegmentCount += other.SegmentCount
	s.CapacityBytes += other.CapacityBytes
	s.ClaimedBytes += other.ClaimedBytes
}

// FreeBytes is the number of bytes not held by any segment, including alignment padding
func (s *Statistics) FreeBytes() int {
	return s.CapacityBytes - s.ClaimedBytes
}

// DetailedStatistics extends Statistics with information about the individual segments and
// free ranges. It must be Cleared before use so that the min values start at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	FreeRangeCount   int
	FreeRangeBytes   int
	SegmentSizeMin   int
	SegmentSizeMax   int
	FreeRangeSizeMin int
	FreeRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRangeCount = 0
	s.FreeRangeBytes = 0
	s.SegmentSizeMin = math.MaxInt
	s.SegmentSizeMax = 0
	s.FreeRangeSizeMin = math.MaxInt
	s.FreeRangeSizeMax = 0
}

func (s *DetailedStatistics) AddFreeRange(size int) {
	s.FreeRangeCount++
	s.FreeRangeBytes += size

	if size < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = size
	}

	if size > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddSegment(size int) {
	s.SegmentCount++
	s.ClaimedBytes += size

	if size < s.SegmentSizeMin {
		s.SegmentSizeMin = size
	}

	if size > s.SegmentSizeMax {
		s.SegmentSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRangeCount += other.FreeRangeCount
	s.FreeRangeBytes += other.FreeRangeBytes

	if other.FreeRangeSizeMin < s.FreeRangeSizeMin {
		s.FreeRangeSizeMin = other.FreeRangeSizeMin
	}

	if other.FreeRangeSizeMax > s.FreeRangeSizeMax {
		s.FreeRangeSizeMax = other.FreeRangeSizeMax
	}

	if other.SegmentSizeMin < s.SegmentSizeMin {
		s.SegmentSizeMin = other.SegmentSizeMin
	}

	if other.SegmentSizeMax > s.SegmentSizeMax {
		s.SegmentSizeMax = other.SegmentSizeMax
	}
}

// Fragmentation returns a value between 0 and 1 describing how scattered the free bytes are.
// 0 means that all free bytes live in a single range (or there are none), values approaching 1
// mean that the largest free range is a small fraction of the free bytes.
func (s *DetailedStatistics) Fragmentation() float64 {
	if s.FreeRangeBytes == 0 {
		return 0
	}

	return 1 - float64(s.FreeRangeSizeMax)/float64(s.FreeRangeBytes)
}
