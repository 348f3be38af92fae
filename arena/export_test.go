package arena

import "github.com/wraftus/flux-engine/memutils/metadata"

// AdvanceNextSegmentID moves the arena's id counter forward so tests can reach the end of the id space
func (a *Arena) AdvanceNextSegmentID(next metadata.SegmentID) error {
	return a.metadata.AdvanceNextID(next)
}
