package defrag

import "github.com/wraftus/flux-engine/memutils/metadata"

type DefragmentationMoveOperation uint32

const (
	// DefragmentationMoveCopy relocates the segment's bytes to DstOffset. This is the operation
	// every move starts with.
	DefragmentationMoveCopy DefragmentationMoveOperation = iota
	// DefragmentationMoveIgnore leaves the segment where it is and pins it for the rest of the run
	DefragmentationMoveIgnore
	// DefragmentationMoveDestroy releases the segment instead of relocating it
	DefragmentationMoveDestroy
)

var defragmentationMoveOperationMapping = map[DefragmentationMoveOperation]string{
	DefragmentationMoveCopy:    "DefragmentationMoveCopy",
	DefragmentationMoveIgnore:  "DefragmentationMoveIgnore",
	DefragmentationMoveDestroy: "DefragmentationMoveDestroy",
}

func (o DefragmentationMoveOperation) String() string {
	return defragmentationMoveOperationMapping[o]
}

// DefragmentOperationHandler is called once for each move after CompletePass has applied it
type DefragmentOperationHandler func(move DefragmentationMove) error

// DefragmentationMove is a single planned relocation of a segment to a lower offset
type DefragmentationMove struct {
	MoveOperation DefragmentationMoveOperation

	ID        metadata.SegmentID
	Size      int
	SrcOffset int
	DstOffset int
}
