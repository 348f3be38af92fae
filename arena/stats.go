package arena

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/wraftus/flux-engine/memutils"
	"github.com/wraftus/flux-engine/memutils/metadata"
)

// CalculateStatistics populates stats with the current state of the arena's segments and free ranges
func (a *Arena) CalculateStatistics(stats *memutils.DetailedStatistics) {
	stats.Clear()

	if !a.IsInitialized() {
		return
	}

	a.metadata.AddDetailedStatistics(stats)
}

// BuildStatsString returns a json document describing the arena. If detailed is true, every segment
// and free range is listed under "Regions". Generation and segment ids are written as decimal strings
// so that they keep their full 64 bits.
func (a *Arena) BuildStatsString(detailed bool) string {
	a.log().Debug("Arena::BuildStatsString")

	writer := jwriter.NewWriter()
	obj := writer.Object()

	if a.IsInitialized() {
		a.metadata.JsonData(&obj)
	}
	obj.Name("Generation").String(strconv.FormatUint(a.generation, 10))

	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)
	statsObj := obj.Name("Statistics").Object()
	printStatistics(&statsObj, &stats)
	statsObj.End()

	if detailed && a.IsInitialized() {
		regions := obj.Name("Regions").Array()
		_ = a.metadata.VisitAllRegions(func(region metadata.Segment, free bool) error {
			regionObj := regions.Object()
			defer regionObj.End()

			regionObj.Name("Offset").Int(region.Offset)
			regionObj.Name("Size").Int(region.Size)
			if free {
				regionObj.Name("Free").Bool(true)
			} else {
				regionObj.Name("ID").String(strconv.FormatUint(uint64(region.ID), 10))
			}

			return nil
		})
		regions.End()
	}

	obj.End()
	return string(writer.Bytes())
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("ArenaCount").Int(stats.ArenaCount)
	json.Name("SegmentCount").Int(stats.SegmentCount)
	json.Name("CapacityBytes").Int(stats.CapacityBytes)
	json.Name("ClaimedBytes").Int(stats.ClaimedBytes)
	json.Name("FreeBytes").Int(stats.FreeBytes())
	json.Name("FreeRangeCount").Int(stats.FreeRangeCount)
	json.Name("FreeRangeBytes").Int(stats.FreeRangeBytes)

	if stats.SegmentCount > 0 {
		json.Name("SegmentSizeMin").Int(stats.SegmentSizeMin)
		json.Name("SegmentSizeMax").Int(stats.SegmentSizeMax)
	}

	if stats.FreeRangeCount > 0 {
		json.Name("FreeRangeSizeMin").Int(stats.FreeRangeSizeMin)
		json.Name("FreeRangeSizeMax").Int(stats.FreeRangeSizeMax)
	}

	json.Name("Fragmentation").Float64(stats.Fragmentation())
}
