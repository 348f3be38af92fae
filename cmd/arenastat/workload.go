package main

import (
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/wraftus/flux-engine/arena"
	"github.com/wraftus/flux-engine/memutils/defrag"
	"github.com/wraftus/flux-engine/memutils/metadata"
	"golang.org/x/exp/slog"
)

type workloadResult struct {
	Claims        int
	Releases      int
	FailedClaims  int
	Compactions   int
	RetriedClaims int
	Stats         defrag.DefragmentationStats

	// Report is the stats json of the arena after the last operation
	Report string
}

func parseStrategy(name string) (metadata.ClaimStrategy, error) {
	switch strings.ToLower(name) {
	case "", "minoffset":
		return metadata.ClaimStrategyMinOffset, nil
	case "minmemory":
		return metadata.ClaimStrategyMinMemory, nil
	}

	return 0, errors.Newf("unknown claim strategy %q", name)
}

func compact(a *arena.Arena, passBytes int) (defrag.DefragmentationStats, error) {
	if passBytes == 0 {
		return a.Compact()
	}

	var stats defrag.DefragmentationStats
	var compaction arena.CompactionContext
	err := a.BeginCompaction(arena.CompactionInfo{MaxBytesPerPass: passBytes}, &compaction)
	if err != nil {
		return stats, err
	}

	for {
		compaction.BeginPass()
		done, err := compaction.EndPass()
		if err != nil {
			return stats, err
		}

		if done {
			break
		}
	}

	compaction.Finish(&stats)
	return stats, nil
}

func runWorkload(logger *slog.Logger, c Config) (workloadResult, error) {
	var result workloadResult

	if c.MaxClaim <= 0 {
		return result, errors.Newf("maxclaim must be greater than 0, but is %d", c.MaxClaim)
	}

	strategy, err := parseStrategy(c.Strategy)
	if err != nil {
		return result, err
	}

	a, err := arena.New(logger, c.Capacity, arena.CreateOptions{
		MaxSegments: c.MaxSegments,
		Strategy:    strategy,
	})
	if err != nil {
		return result, errors.Wrap(err, "failed to create arena")
	}

	rng := rand.New(rand.NewSource(c.Seed))
	var live []metadata.SegmentID

	for op := 0; op < c.Ops; op++ {
		if len(live) > 0 && rng.Float64() < c.ReleaseRatio {
			index := rng.Intn(len(live))
			err = a.Release(live[index])
			if err != nil {
				return result, errors.Wrapf(err, "failed to release segment %d", live[index])
			}

			live[index] = live[len(live)-1]
			live = live[:len(live)-1]
			result.Releases++
			continue
		}

		size := 1 + rng.Intn(c.MaxClaim)
		id, _, err := a.Claim(size)
		if errors.Is(err, arena.ErrFragmented) {
			stats, compactErr := compact(a, c.PassBytes)
			if compactErr != nil {
				return result, errors.Wrap(compactErr, "failed to compact arena")
			}

			result.Compactions++
			result.RetriedClaims++
			result.Stats.Add(stats)

			id, _, err = a.Claim(size)
		}

		switch {
		case err == nil:
			live = append(live, id)
			result.Claims++
		case errors.Is(err, arena.ErrFragmented),
			errors.Is(err, arena.ErrOutOfSpace),
			errors.Is(err, arena.ErrSegmentTableFull):
			result.FailedClaims++
		default:
			return result, errors.Wrapf(err, "failed to claim %d bytes", size)
		}
	}

	result.Report = a.BuildStatsString(c.Detailed)

	for _, id := range live {
		err = a.Release(id)
		if err != nil {
			return result, errors.Wrapf(err, "failed to release segment %d", id)
		}
	}

	return result, a.Destroy()
}
