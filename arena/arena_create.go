package arena

import (
	"github.com/cockroachdb/errors"
	"github.com/wraftus/flux-engine/memutils/metadata"
	"golang.org/x/exp/slog"
)

const (
	// DefaultMaxSegments is the value that is used as CreateOptions.MaxSegments when none is provided
	DefaultMaxSegments int = 100
)

// CreateOptions contains optional settings when creating an arena
type CreateOptions struct {
	// MaxSegments is the maximum number of segments that may be claimed at once. If it is left
	// at 0, DefaultMaxSegments is used.
	MaxSegments int
	// Strategy selects which free range each claim is placed in. If it is left at 0,
	// metadata.ClaimStrategyMinOffset is used.
	Strategy metadata.ClaimStrategy
}

func (o CreateOptions) validate() error {
	if o.MaxSegments < 0 {
		return errors.Wrapf(ErrInvalidOptions, "MaxSegments is %d", o.MaxSegments)
	}

	if !o.Strategy.Valid() {
		return errors.Wrapf(ErrInvalidOptions, "unknown claim strategy %d", o.Strategy)
	}

	return nil
}

// New creates a new Arena
//
// logger - The logger that arena operations will be traced to. It may be nil.
//
// capacity - The size of the arena in bytes
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, capacity int, options CreateOptions) (*Arena, error) {
	arena := &Arena{}
	err := arena.Init(logger, capacity, options)
	if err != nil {
		return nil, err
	}

	return arena, nil
}
