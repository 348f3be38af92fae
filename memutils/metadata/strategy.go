package metadata

// ClaimStrategy selects which free range a new segment is placed in. If none is chosen,
// ClaimStrategyMinOffset is used.
type ClaimStrategy uint32

const (
	// ClaimStrategyMinOffset places the segment in the first free range, scanning from offset 0,
	// that is large enough to hold it.
	ClaimStrategyMinOffset ClaimStrategy = 1 << iota
	// ClaimStrategyMinMemory places the segment in the smallest free range that is large enough
	// to hold it, preferring the lowest offset when several ranges are equally small. This
	// keeps large ranges intact at the cost of scanning the whole table.
	ClaimStrategyMinMemory
)

var claimStrategyMapping = map[ClaimStrategy]string{
	ClaimStrategyMinOffset: "ClaimStrategyMinOffset",
	ClaimStrategyMinMemory: "ClaimStrategyMinMemory",
}

func (s ClaimStrategy) String() string {
	return claimStrategyMapping[s]
}

// Valid returns true if s is zero or one of the known strategies
func (s ClaimStrategy) Valid() bool {
	if s == 0 {
		return true
	}

	_, ok := claimStrategyMapping[s]
	return ok
}
