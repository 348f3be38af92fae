package arena

import (
	"context"
	"io"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/wraftus/flux-engine/memutils"
	"github.com/wraftus/flux-engine/memutils/defrag"
	"github.com/wraftus/flux-engine/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Arena is a single fixed-capacity block of bytes that consumers claim segments from. Each
// segment is identified by a metadata.SegmentID that stays valid until the segment is released,
// even when Compact moves the segment's bytes to a lower offset.
//
// Byte slices returned from Claim and Lookup borrow the arena's memory directly. They remain
// valid until the next compaction or until the arena is destroyed: after that, Lookup must be
// called again. Generation can be used to detect when a cached slice has gone stale.
//
// Arena is not safe for concurrent use.
type Arena struct {
	logger *slog.Logger

	words    []uint64
	buffer   []byte
	metadata *metadata.SegmentMetadata
	strategy metadata.ClaimStrategy

	generation uint64
	epoch      uint64
}

var _ memutils.Validatable = &Arena{}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (a *Arena) log() *slog.Logger {
	if a.logger == nil {
		return discardLogger
	}
	return a.logger
}

// Init prepares a zero-value Arena for use. It fails if the Arena is already initialized or if
// the capacity or options are invalid, in which case the Arena remains uninitialized.
func (a *Arena) Init(logger *slog.Logger, capacity int, options CreateOptions) error {
	if a.IsInitialized() {
		return ErrAlreadyInitialized
	}

	if capacity <= 0 {
		return errors.Wrapf(ErrInvalidCapacity, "capacity is %d", capacity)
	}

	err := options.validate()
	if err != nil {
		return err
	}

	if logger == nil {
		logger = discardLogger
	}

	maxSegments := options.MaxSegments
	if maxSegments == 0 {
		maxSegments = DefaultMaxSegments
	}

	strategy := options.Strategy
	if strategy == 0 {
		strategy = metadata.ClaimStrategyMinOffset
	}

	// Backing the buffer with words means offset 0 satisfies memutils.MaxAlignment
	wordSize := int(unsafe.Sizeof(uint64(0)))
	a.words = make([]uint64, (capacity+wordSize-1)/wordSize)
	a.buffer = unsafe.Slice((*byte)(unsafe.Pointer(&a.words[0])), capacity)

	a.logger = logger
	a.strategy = strategy
	a.metadata = metadata.NewSegmentMetadata(maxSegments)
	a.metadata.Init(capacity)
	a.epoch++

	a.log().Debug("Arena::Init", slog.Int("Capacity", capacity), slog.Int("MaxSegments", maxSegments), slog.String("Strategy", strategy.String()))

	return nil
}

// IsInitialized returns true if Init has succeeded and Destroy has not been called since
func (a *Arena) IsInitialized() bool {
	return a.buffer != nil
}

// Capacity returns the size of the arena in bytes, or 0 if it is not initialized
func (a *Arena) Capacity() int {
	return len(a.buffer)
}

// BytesClaimed returns the number of bytes held by live segments. Alignment padding between
// segments is not counted.
func (a *Arena) BytesClaimed() int {
	if !a.IsInitialized() {
		return 0
	}
	return a.metadata.ClaimedBytes()
}

// SegmentCount returns the number of live segments
func (a *Arena) SegmentCount() int {
	if !a.IsInitialized() {
		return 0
	}
	return a.metadata.SegmentCount()
}

// MaxSegments returns the maximum number of segments that may be live at once
func (a *Arena) MaxSegments() int {
	if !a.IsInitialized() {
		return 0
	}
	return a.metadata.MaxSegments()
}

// Generation returns a counter that increases every time bytes of a live segment are moved, a
// segment is released, or the arena is destroyed. Slices borrowed while Generation had a different
// value may be stale and must be looked up again.
func (a *Arena) Generation() uint64 {
	return a.generation
}

func (a *Arena) bytes(offset, size int) []byte {
	return a.buffer[offset : offset+size : offset+size]
}

// Claim reserves size bytes from the arena and returns the new segment's id along with its bytes.
// The segment is placed according to the arena's claim strategy and has no alignment requirement.
func (a *Arena) Claim(size int) (metadata.SegmentID, []byte, error) {
	return a.ClaimAligned(size, 1)
}

// ClaimAligned reserves size bytes from the arena at an offset that is a multiple of alignment, and
// returns the new segment's id along with its bytes. alignment must be a power of two no larger
// than memutils.MaxAlignment.
//
// ErrOutOfSpace is returned when the arena does not have size unclaimed bytes, and ErrFragmented
// when it does but no single free range can hold the segment.
func (a *Arena) ClaimAligned(size int, alignment uint) (metadata.SegmentID, []byte, error) {
	a.log().Debug("Arena::ClaimAligned", slog.Int("Size", size), slog.Uint64("Alignment", uint64(alignment)))

	if !a.IsInitialized() {
		return metadata.NoSegment, nil, ErrNotInitialized
	}

	if size <= 0 {
		return metadata.NoSegment, nil, errors.Wrapf(ErrInvalidSize, "size is %d", size)
	}

	err := memutils.CheckAlignment(alignment)
	if err != nil {
		return metadata.NoSegment, nil, errors.Mark(err, ErrInvalidAlignment)
	}

	if size > a.metadata.SumFreeSize() {
		return metadata.NoSegment, nil, errors.Wrapf(ErrOutOfSpace, "claiming %d bytes with %d of %d already claimed", size, a.metadata.ClaimedBytes(), a.metadata.Size())
	}

	if a.metadata.IsFull() {
		return metadata.NoSegment, nil, errors.Wrapf(ErrSegmentTableFull, "the arena already holds %d segments", a.metadata.SegmentCount())
	}

	if a.metadata.NextID() == metadata.MaxSegmentID {
		return metadata.NoSegment, nil, ErrIDSpaceExhausted
	}

	success, request, err := a.metadata.CreateClaimRequest(size, alignment, a.strategy)
	if err != nil {
		return metadata.NoSegment, nil, errors.Wrap(err, "failed to create claim request")
	}

	if !success {
		a.log().Debug("  Arena::ClaimAligned FAILED", slog.Int("FreeBytes", a.metadata.SumFreeSize()), slog.Int("FreeRanges", a.metadata.FreeRegionsCount()))
		return metadata.NoSegment, nil, errors.Wrapf(ErrFragmented, "no free range holds %d bytes at alignment %d, %d bytes are free across %d ranges", size, alignment, a.metadata.SumFreeSize(), a.metadata.FreeRegionsCount())
	}

	id, err := a.metadata.Claim(request)
	if err != nil {
		return metadata.NoSegment, nil, errors.Wrap(err, "failed to commit claim request")
	}

	memutils.DebugValidate(a)
	return id, a.bytes(request.Offset, size), nil
}

// Release returns a live segment's bytes to the arena. The bytes themselves are left untouched, but
// any slice borrowed from the segment must no longer be used.
func (a *Arena) Release(id metadata.SegmentID) error {
	a.log().Debug("Arena::Release", slog.Uint64("ID", uint64(id)))

	if !a.IsInitialized() {
		return ErrNotInitialized
	}

	_, err := a.metadata.Release(id)
	if err != nil {
		return errors.Wrapf(ErrUnknownSegment, "segment %d", id)
	}
	a.generation++

	memutils.DebugValidate(a)
	return nil
}

// Lookup returns the current bytes of a live segment
func (a *Arena) Lookup(id metadata.SegmentID) ([]byte, error) {
	segment, err := a.Segment(id)
	if err != nil {
		return nil, err
	}

	return a.bytes(segment.Offset, segment.Size), nil
}

// Segment returns the current placement of a live segment
func (a *Arena) Segment(id metadata.SegmentID) (metadata.Segment, error) {
	if !a.IsInitialized() {
		return metadata.Segment{}, ErrNotInitialized
	}

	segment, err := a.metadata.Find(id)
	if err != nil {
		return metadata.Segment{}, errors.Wrapf(ErrUnknownSegment, "segment %d", id)
	}

	return segment, nil
}

func (a *Arena) relocate(id metadata.SegmentID, dstOffset int) error {
	segment, err := a.metadata.Find(id)
	if err != nil {
		return errors.Wrapf(ErrUnknownSegment, "segment %d", id)
	}

	if segment.Offset == dstOffset {
		return nil
	}

	err = a.metadata.Relocate(id, dstOffset)
	if err != nil {
		return errors.Wrapf(err, "failed to relocate segment %d", id)
	}

	copy(a.buffer[dstOffset:dstOffset+segment.Size], a.buffer[segment.Offset:segment.End()])
	a.generation++

	return nil
}

// Compact slides every live segment down to the lowest offset that follows the previous segment
// and satisfies the segment's alignment, leaving all free bytes at the end of the arena. Segment ids
// do not change, but every previously borrowed slice becomes stale.
func (a *Arena) Compact() (defrag.DefragmentationStats, error) {
	a.log().Debug("Arena::Compact")

	var stats defrag.DefragmentationStats
	var compaction CompactionContext
	err := a.BeginCompaction(CompactionInfo{}, &compaction)
	if err != nil {
		return stats, err
	}

	for {
		compaction.BeginPass()
		done, err := compaction.EndPass()
		if err != nil {
			compaction.Finish(&stats)
			return stats, err
		}

		if done {
			break
		}
	}

	compaction.Finish(&stats)
	return stats, nil
}

// Validate performs internal consistency checks on the arena. When the implementation is
// functioning correctly, it should not be possible for this method to return an error.
func (a *Arena) Validate() error {
	if !a.IsInitialized() {
		return nil
	}

	if len(a.buffer) != a.metadata.Size() {
		return errors.Newf("the arena buffer holds %d bytes, but the metadata tracks %d", len(a.buffer), a.metadata.Size())
	}

	if uintptr(unsafe.Pointer(&a.buffer[0]))%uintptr(memutils.MaxAlignment) != 0 {
		return errors.Newf("the arena buffer does not satisfy an alignment of %d", memutils.MaxAlignment)
	}

	return a.metadata.Validate()
}

// Destroy frees the arena's memory and returns it to the uninitialized state. Every segment that is
// still claimed is logged at error level and ErrUnreleasedSegments is returned, although the
// arena is destroyed either way.
func (a *Arena) Destroy() error {
	a.log().Debug("Arena::Destroy")

	if !a.IsInitialized() {
		return ErrNotInitialized
	}

	unreleased := a.metadata.SegmentCount()
	if unreleased > 0 {
		_ = a.metadata.VisitAllRegions(func(region metadata.Segment, free bool) error {
			if !free {
				a.log().LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased segment",
					slog.Uint64("id", uint64(region.ID)),
					slog.Int("offset", region.Offset),
					slog.Int("size", region.Size),
				)
			}

			return nil
		})
	}

	a.words = nil
	a.buffer = nil
	a.metadata = nil
	a.generation++

	if unreleased > 0 {
		return errors.Wrapf(ErrUnreleasedSegments, "%d segments were still claimed", unreleased)
	}

	return nil
}
