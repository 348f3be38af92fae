package defrag

import "github.com/wraftus/flux-engine/memutils/metadata"

func DefragContextWithMoves(moves []DefragmentationMove) *MetadataDefragContext {
	return &MetadataDefragContext{
		moves:     moves,
		immovable: make(map[metadata.SegmentID]struct{}),
	}
}
