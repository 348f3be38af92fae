package metadata

// ClaimRequest is returned from SegmentMetadata.CreateClaimRequest and indicates where the
// metadata intends to place a new segment. It can be committed with SegmentMetadata.Claim as long as
// the table has not been modified in between.
type ClaimRequest struct {
	// Offset is the byte offset the new segment will start at
	Offset int
	// Size is the size in bytes of the new segment
	Size int
	// Alignment is the alignment that Offset satisfies
	Alignment uint
	// Index is the position the new segment will occupy in the offset-ordered segment table
	Index int
	// Strategy is the strategy that was used to choose Offset
	Strategy ClaimStrategy
}
