package arena

import "github.com/cockroachdb/errors"

var (
	// ErrNotInitialized is returned when an Arena is used before Init has succeeded or after Destroy
	ErrNotInitialized = errors.New("arena is not initialized")
	// ErrAlreadyInitialized is returned from Init when the Arena is already in use
	ErrAlreadyInitialized = errors.New("arena is already initialized")
	// ErrInvalidCapacity is returned when a capacity of zero or less is requested
	ErrInvalidCapacity = errors.New("capacity must be greater than 0")
	// ErrInvalidOptions is returned when CreateOptions or CompactionInfo hold values that cannot be honored
	ErrInvalidOptions = errors.New("invalid options")
	// ErrInvalidSize is returned when a claim of zero or fewer bytes is requested
	ErrInvalidSize = errors.New("claim size must be greater than 0")
	// ErrInvalidAlignment is returned when a claim alignment is not a power of two or exceeds memutils.MaxAlignment
	ErrInvalidAlignment = errors.New("invalid claim alignment")

	// ErrOutOfSpace is returned when a claim would take the claimed byte count past the arena's capacity
	ErrOutOfSpace = errors.New("not enough unclaimed bytes in the arena")
	// ErrFragmented is returned when the arena has enough unclaimed bytes for a claim, but no single free
	// range can hold it. Calling Compact may allow the claim to succeed.
	ErrFragmented = errors.New("no free range in the arena is large enough")
	// ErrSegmentTableFull is returned when the arena already holds its maximum number of segments
	ErrSegmentTableFull = errors.New("the arena's segment table is full")
	// ErrIDSpaceExhausted is returned when every segment id has been handed out
	ErrIDSpaceExhausted = errors.New("the arena has run out of segment ids")
	// ErrUnknownSegment is returned when a segment id does not name a live segment of the arena
	ErrUnknownSegment = errors.New("unknown segment")
	// ErrUnreleasedSegments is returned from Destroy when segments were still claimed
	ErrUnreleasedSegments = errors.New("segments were not released before the arena was destroyed")

	// ErrViewBound is returned when Bind is called on a View that is already bound
	ErrViewBound = errors.New("view is already bound")
	// ErrViewUnbound is returned when an unbound View is used
	ErrViewUnbound = errors.New("view is not bound")
	// ErrViewFull is returned when an element is added to a View that is at capacity
	ErrViewFull = errors.New("view is full")
	// ErrIndexOutOfRange is returned when a View index falls outside of its elements
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidElement is returned when a View's element type cannot live in arena memory
	ErrInvalidElement = errors.New("element type cannot be stored in an arena")
)
