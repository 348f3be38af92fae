package defrag

import "github.com/wraftus/flux-engine/memutils/metadata"

//go:generate mockgen -source segment_list.go -destination ./mocks/segment_list.go

// SegmentList is the memory that a MetadataDefragContext defragments: an offset-ordered list
// of segments whose bytes can be moved to lower offsets
type SegmentList interface {
	// SegmentCount is the number of live segments
	SegmentCount() int
	// SegmentAt returns the segment at the provided position in offset order
	SegmentAt(index int) metadata.Segment

	// RelocateSegment moves the bytes of a live segment to dstOffset and records its new offset.
	// dstOffset is never higher than the segment's current offset.
	RelocateSegment(id metadata.SegmentID, dstOffset int) error
	// ReleaseSegment releases a live segment
	ReleaseSegment(id metadata.SegmentID) error
}
