package metadata

import (
	"math"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/wraftus/flux-engine/memutils"
	"golang.org/x/exp/slices"
)

// SegmentMetadata tracks the segments claimed within a single fixed-size block of memory. It does
// not own or touch the memory itself: consumers apply claims, releases and relocations to their
// own bytes and use SegmentMetadata to decide where those bytes live.
//
// Segments are kept in a table ordered by offset. No two segments overlap, and the number of
// segments can be bounded so that every operation on the table stays cheap. Each segment
// is identified by a SegmentID that is handed out from a monotonically increasing counter and is
// never reused, even after the segment is released.
type SegmentMetadata struct {
	size        int
	maxSegments int
	claimed     int
	nextID      SegmentID

	segments []Segment
	offsets  *swiss.Map[SegmentID, int]
}

var _ memutils.Validatable = &SegmentMetadata{}

// NewSegmentMetadata creates a new SegmentMetadata that will track at most maxSegments live
// segments. A maxSegments value of 0 or less does not bound the segment count.
func NewSegmentMetadata(maxSegments int) *SegmentMetadata {
	if maxSegments <= 0 {
		maxSegments = math.MaxInt
	}

	return &SegmentMetadata{
		maxSegments: maxSegments,
		nextID:      1,
	}
}

// Init must be called before the metadata is used. It sizes the managed block to size bytes
// and resets the table and id counter.
func (m *SegmentMetadata) Init(size int) {
	hint := 42
	if m.maxSegments < hint {
		hint = m.maxSegments
	}

	m.size = size
	m.claimed = 0
	m.nextID = 1
	m.segments = make([]Segment, 0, hint)
	m.offsets = swiss.NewMap[SegmentID, int](uint32(hint))
}

// Size returns the size of the block in bytes
func (m *SegmentMetadata) Size() int { return m.size }

// ClaimedBytes returns the number of bytes held by live segments
func (m *SegmentMetadata) ClaimedBytes() int { return m.claimed }

// SumFreeSize returns the number of bytes not held by live segments
func (m *SegmentMetadata) SumFreeSize() int { return m.size - m.claimed }

// SegmentCount returns the number of live segments
func (m *SegmentMetadata) SegmentCount() int { return len(m.segments) }

// MaxSegments returns the maximum number of live segments, or math.MaxInt if unbounded
func (m *SegmentMetadata) MaxSegments() int { return m.maxSegments }

// IsEmpty returns true if there are no live segments
func (m *SegmentMetadata) IsEmpty() bool { return len(m.segments) == 0 }

// IsFull returns true if the segment table cannot accept another segment
func (m *SegmentMetadata) IsFull() bool { return len(m.segments) >= m.maxSegments }

// NextID returns the id that the next successful claim will receive
func (m *SegmentMetadata) NextID() SegmentID { return m.nextID }

// AdvanceNextID moves the id counter forward to next, so that no id below next is ever handed out.
// The counter can never move backward, because ids must not be reused.
func (m *SegmentMetadata) AdvanceNextID(next SegmentID) error {
	if next < m.nextID {
		return errors.Errorf("cannot move the id counter back from %d to %d", m.nextID, next)
	}

	m.nextID = next
	return nil
}

// SegmentAt returns the segment at the provided position in the offset-ordered table
func (m *SegmentMetadata) SegmentAt(index int) Segment {
	return m.segments[index]
}

// CreateClaimRequest finds a place for a new segment of allocSize bytes whose offset is a multiple
// of alignment. It returns false without an error if the block does not have room: either
// the byte budget or the segment table is exhausted, or no single free range is large enough.
// Errors are returned only for invalid arguments.
func (m *SegmentMetadata) CreateClaimRequest(allocSize int, alignment uint, strategy ClaimStrategy) (bool, ClaimRequest, error) {
	if allocSize <= 0 {
		return false, ClaimRequest{}, errors.New("claim size must be greater than 0")
	}
	err := memutils.CheckAlignment(alignment)
	if err != nil {
		return false, ClaimRequest{}, err
	}
	if strategy == 0 {
		strategy = ClaimStrategyMinOffset
	}
	memutils.DebugValidate(m)

	if allocSize > m.SumFreeSize() || m.IsFull() {
		return false, ClaimRequest{}, nil
	}

	request := ClaimRequest{
		Size:      allocSize,
		Alignment: alignment,
		Strategy:  strategy,
	}

	switch strategy {
	case ClaimStrategyMinOffset:
		return m.populateRequestMinOffset(&request), request, nil
	case ClaimStrategyMinMemory:
		return m.populateRequestMinMemory(&request), request, nil
	}

	return false, ClaimRequest{}, errors.Errorf("unknown claim strategy: %d", strategy)
}

func (m *SegmentMetadata) populateRequestMinOffset(request *ClaimRequest) bool {
	expectedOffset := 0
	for index, segment := range m.segments {
		candidate := memutils.AlignUp(expectedOffset, request.Alignment)
		if candidate <= segment.Offset && segment.Offset-candidate >= request.Size {
			request.Offset = candidate
			request.Index = index
			return true
		}

		expectedOffset = segment.End()
	}

	candidate := memutils.AlignUp(expectedOffset, request.Alignment)
	if candidate > m.size || m.size-candidate < request.Size {
		return false
	}

	request.Offset = candidate
	request.Index = len(m.segments)
	return true
}

func (m *SegmentMetadata) populateRequestMinMemory(request *ClaimRequest) bool {
	bestRange := math.MaxInt
	found := false

	expectedOffset := 0
	for index := 0; index <= len(m.segments); index++ {
		rangeEnd := m.size
		if index < len(m.segments) {
			rangeEnd = m.segments[index].Offset
		}

		candidate := memutils.AlignUp(expectedOffset, request.Alignment)
		rangeSize := rangeEnd - expectedOffset
		if candidate <= rangeEnd && rangeEnd-candidate >= request.Size && rangeSize < bestRange {
			bestRange = rangeSize
			request.Offset = candidate
			request.Index = index
			found = true
		}

		if index < len(m.segments) {
			expectedOffset = m.segments[index].End()
		}
	}

	return found
}

// Claim commits a ClaimRequest, creating the segment it describes and returning the new segment's
// id. An error is returned if the request no longer fits in the table as it currently stands.
func (m *SegmentMetadata) Claim(request ClaimRequest) (SegmentID, error) {
	if request.Size <= 0 {
		return NoSegment, errors.New("claim size must be greater than 0")
	}
	if m.nextID == MaxSegmentID {
		return NoSegment, errors.New("the segment id counter is exhausted")
	}
	if m.IsFull() {
		return NoSegment, errors.Errorf("the segment table already holds the maximum of %d segments", m.maxSegments)
	}
	if request.Size > m.SumFreeSize() {
		return NoSegment, errors.Errorf("claiming %d bytes would exceed the block size of %d with %d bytes already claimed", request.Size, m.size, m.claimed)
	}
	if request.Index < 0 || request.Index > len(m.segments) {
		return NoSegment, errors.Errorf("claim request index %d is outside of the segment table", request.Index)
	}
	if request.Alignment == 0 || request.Offset%int(request.Alignment) != 0 {
		return NoSegment, errors.Errorf("claim request offset %d does not satisfy alignment %d", request.Offset, request.Alignment)
	}
	err := m.checkRange(request.Index, request.Index, request.Offset, request.Size)
	if err != nil {
		return NoSegment, err
	}

	segment := Segment{
		Offset:    request.Offset,
		Size:      request.Size,
		Alignment: request.Alignment,
		ID:        m.nextID,
	}
	m.nextID++

	m.segments = slices.Insert(m.segments, request.Index, segment)
	m.offsets.Put(segment.ID, segment.Offset)
	m.claimed += segment.Size

	memutils.DebugValidate(m)
	return segment.ID, nil
}

// checkRange verifies that [offset, offset+size) fits between the segment that ends before
// position prevIndex and the segment at position nextIndex
func (m *SegmentMetadata) checkRange(prevIndex, nextIndex int, offset, size int) error {
	lowerBound := 0
	if prevIndex > 0 {
		lowerBound = m.segments[prevIndex-1].End()
	}

	upperBound := m.size
	if nextIndex < len(m.segments) {
		upperBound = m.segments[nextIndex].Offset
	}

	if offset < lowerBound {
		return errors.Errorf("the range at offset %d collides with a previous segment ending at %d", offset, lowerBound)
	}
	if offset > upperBound || upperBound-offset < size {
		return errors.Errorf("the range at offset %d with size %d collides with the next region starting at %d", offset, size, upperBound)
	}

	return nil
}

func (m *SegmentMetadata) indexOf(id SegmentID) (int, error) {
	if id == NoSegment {
		return -1, errors.New("NoSegment does not name a live segment")
	}

	offset, ok := m.offsets.Get(id)
	if !ok {
		return -1, errors.Errorf("segment %d is not live in this block", id)
	}

	index, found := slices.BinarySearchFunc(m.segments, offset, func(segment Segment, offset int) int {
		return segment.Offset - offset
	})
	if !found || m.segments[index].ID != id {
		return -1, errors.Errorf("segment %d is indexed at offset %d, but no such segment is in the table", id, offset)
	}

	return index, nil
}

// Find returns the live segment with the provided id
func (m *SegmentMetadata) Find(id SegmentID) (Segment, error) {
	index, err := m.indexOf(id)
	if err != nil {
		return Segment{}, err
	}

	return m.segments[index], nil
}

// Release removes the live segment with the provided id from the table and returns it. The
// range it occupied becomes free.
func (m *SegmentMetadata) Release(id SegmentID) (Segment, error) {
	index, err := m.indexOf(id)
	if err != nil {
		return Segment{}, err
	}

	segment := m.segments[index]
	m.segments = slices.Delete(m.segments, index, index+1)
	m.offsets.Delete(id)
	m.claimed -= segment.Size

	memutils.DebugValidate(m)
	return segment, nil
}

// Relocate changes the offset of a live segment. The segment cannot change position relative
// to its neighbors: the new range must lie between the end of the previous segment and the start
// of the next one, and must satisfy the segment's alignment.
func (m *SegmentMetadata) Relocate(id SegmentID, newOffset int) error {
	index, err := m.indexOf(id)
	if err != nil {
		return err
	}

	segment := &m.segments[index]
	if newOffset == segment.Offset {
		return nil
	}
	if newOffset%int(segment.Alignment) != 0 {
		return errors.Errorf("offset %d does not satisfy the alignment %d of segment %d", newOffset, segment.Alignment, id)
	}
	err = m.checkRange(index, index+1, newOffset, segment.Size)
	if err != nil {
		return err
	}

	segment.Offset = newOffset
	m.offsets.Put(id, newOffset)

	memutils.DebugValidate(m)
	return nil
}

// VisitAllRegions calls the provided callback once for each segment and each free range in the
// block, in offset order. Free ranges are reported with an ID of NoSegment and an alignment of 1.
// Iteration stops at the first error returned by the callback.
func (m *SegmentMetadata) VisitAllRegions(handleRegion func(region Segment, free bool) error) error {
	lastOffset := 0
	for _, segment := range m.segments {
		if lastOffset < segment.Offset {
			err := handleRegion(Segment{Offset: lastOffset, Size: segment.Offset - lastOffset, Alignment: 1}, true)
			if err != nil {
				return err
			}
		}

		err := handleRegion(segment, false)
		if err != nil {
			return err
		}

		lastOffset = segment.End()
	}

	if lastOffset < m.size {
		return handleRegion(Segment{Offset: lastOffset, Size: m.size - lastOffset, Alignment: 1}, true)
	}

	return nil
}

// FreeRegionsCount returns the number of distinct free ranges in the block
func (m *SegmentMetadata) FreeRegionsCount() int {
	var count int
	_ = m.VisitAllRegions(func(region Segment, free bool) error {
		if free {
			count++
		}
		return nil
	})

	return count
}

// AddStatistics sums this block's statistics into the provided memutils.Statistics object
func (m *SegmentMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.ArenaCount++
	stats.CapacityBytes += m.size
	stats.SegmentCount += len(m.segments)
	stats.ClaimedBytes += m.claimed
}

// AddDetailedStatistics sums this block's statistics into the provided memutils.DetailedStatistics object
func (m *SegmentMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ArenaCount++
	stats.CapacityBytes += m.size

	_ = m.VisitAllRegions(func(region Segment, free bool) error {
		if free {
			stats.AddFreeRange(region.Size)
		} else {
			stats.AddSegment(region.Size)
		}

		return nil
	})
}

// JsonData populates a json object with summary information about this block
func (m *SegmentMetadata) JsonData(json *jwriter.ObjectState) {
	json.Name("TotalBytes").Int(m.size)
	json.Name("UnusedBytes").Int(m.SumFreeSize())
	json.Name("Segments").Int(len(m.segments))
	json.Name("UnusedRanges").Int(m.FreeRegionsCount())
}

// Validate performs internal consistency checks on the metadata. When the implementation is
// functioning correctly, it should not be possible for this method to return an error.
func (m *SegmentMetadata) Validate() error {
	if len(m.segments) > m.maxSegments {
		return errors.Errorf("the segment table holds %d segments, but the maximum is %d", len(m.segments), m.maxSegments)
	}

	if m.offsets.Count() != len(m.segments) {
		return errors.Errorf("the id index holds %d entries, but the segment table holds %d segments", m.offsets.Count(), len(m.segments))
	}

	var sumClaimed, lastEnd int
	for index, segment := range m.segments {
		if segment.Size <= 0 {
			return errors.Errorf("segment %d at index %d has invalid size %d", segment.ID, index, segment.Size)
		}

		if segment.Offset < lastEnd {
			return errors.Errorf("segment %d at index %d has offset %d- this collides with previous segments, expected offset of at least %d", segment.ID, index, segment.Offset, lastEnd)
		}

		if segment.Offset > m.size || m.size-segment.Offset < segment.Size {
			return errors.Errorf("segment %d at index %d with offset %d and size %d extends past the block size of %d", segment.ID, index, segment.Offset, segment.Size, m.size)
		}

		err := memutils.CheckPow2(segment.Alignment, "alignment")
		if err != nil {
			return errors.Wrapf(err, "segment %d at index %d", segment.ID, index)
		}

		if segment.Offset%int(segment.Alignment) != 0 {
			return errors.Errorf("segment %d at index %d has offset %d, which does not satisfy its alignment %d", segment.ID, index, segment.Offset, segment.Alignment)
		}

		if segment.ID == NoSegment || segment.ID >= m.nextID {
			return errors.Errorf("segment at index %d has id %d, which has not been handed out", index, segment.ID)
		}

		indexedOffset, ok := m.offsets.Get(segment.ID)
		if !ok || indexedOffset != segment.Offset {
			return errors.Errorf("segment %d at index %d has offset %d, but the id index disagrees", segment.ID, index, segment.Offset)
		}

		sumClaimed += segment.Size
		lastEnd = segment.End()
	}

	if sumClaimed != m.claimed {
		return errors.Errorf("the metadata claims %d bytes are in use, but the segments add up to %d", m.claimed, sumClaimed)
	}

	return nil
}
