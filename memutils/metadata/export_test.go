package metadata

// CorruptOffset rewrites the offset of the segment at index without updating the id index
func (m *SegmentMetadata) CorruptOffset(index int, offset int) {
	m.segments[index].Offset = offset
}

// CorruptClaimed rewrites the claimed byte count
func (m *SegmentMetadata) CorruptClaimed(claimed int) {
	m.claimed = claimed
}
