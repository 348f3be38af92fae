package arena_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/wraftus/flux-engine/arena"
	"github.com/wraftus/flux-engine/memutils"
	"github.com/wraftus/flux-engine/memutils/metadata"
	"golang.org/x/exp/slog"
)

func newArena(t *testing.T, capacity int, options arena.CreateOptions) *arena.Arena {
	a, err := arena.New(nil, capacity, options)
	require.NoError(t, err)
	t.Cleanup(func() {
		if a.IsInitialized() {
			_ = a.Destroy()
		}
	})
	return a
}

func putFloat(b []byte, value float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(value))
}

func getFloat(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func claimFloat(t *testing.T, a *arena.Arena, value float32) metadata.SegmentID {
	id, b, err := a.Claim(4)
	require.NoError(t, err)
	require.Len(t, b, 4)
	putFloat(b, value)
	return id
}

func lookupFloat(t *testing.T, a *arena.Arena, id metadata.SegmentID) float32 {
	b, err := a.Lookup(id)
	require.NoError(t, err)
	return getFloat(b)
}

func TestInit(t *testing.T) {
	var a arena.Arena
	require.False(t, a.IsInitialized())

	require.NoError(t, a.Init(nil, 64, arena.CreateOptions{}))
	require.True(t, a.IsInitialized())
	require.Equal(t, 64, a.Capacity())
	require.Equal(t, 0, a.BytesClaimed())
	require.Equal(t, 0, a.SegmentCount())
	require.Equal(t, arena.DefaultMaxSegments, a.MaxSegments())
	require.NoError(t, a.Validate())

	err := a.Init(nil, 64, arena.CreateOptions{})
	require.True(t, errors.Is(err, arena.ErrAlreadyInitialized))
	require.NoError(t, a.Destroy())
}

func TestInitInvalid(t *testing.T) {
	_, err := arena.New(nil, 0, arena.CreateOptions{})
	require.True(t, errors.Is(err, arena.ErrInvalidCapacity))

	_, err = arena.New(nil, -8, arena.CreateOptions{})
	require.True(t, errors.Is(err, arena.ErrInvalidCapacity))

	_, err = arena.New(nil, 8, arena.CreateOptions{MaxSegments: -1})
	require.True(t, errors.Is(err, arena.ErrInvalidOptions))

	_, err = arena.New(nil, 8, arena.CreateOptions{Strategy: metadata.ClaimStrategy(12)})
	require.True(t, errors.Is(err, arena.ErrInvalidOptions))

	var a arena.Arena
	require.Error(t, a.Init(nil, 0, arena.CreateOptions{}))
	require.False(t, a.IsInitialized())

	_, _, err = a.Claim(4)
	require.True(t, errors.Is(err, arena.ErrNotInitialized))
	require.True(t, errors.Is(a.Release(1), arena.ErrNotInitialized))
	_, err = a.Lookup(1)
	require.True(t, errors.Is(err, arena.ErrNotInitialized))
	_, err = a.Compact()
	require.True(t, errors.Is(err, arena.ErrNotInitialized))
	require.True(t, errors.Is(a.Destroy(), arena.ErrNotInitialized))
}

func TestScenarioFillArena(t *testing.T) {
	a := newArena(t, 12, arena.CreateOptions{})

	first := claimFloat(t, a, 1.0)
	second := claimFloat(t, a, 2.0)
	third := claimFloat(t, a, 3.0)
	require.Equal(t, 12, a.BytesClaimed())

	_, _, err := a.Claim(4)
	require.True(t, errors.Is(err, arena.ErrOutOfSpace))
	require.Equal(t, 12, a.BytesClaimed())

	require.Equal(t, float32(1.0), lookupFloat(t, a, first))
	require.Equal(t, float32(2.0), lookupFloat(t, a, second))
	require.Equal(t, float32(3.0), lookupFloat(t, a, third))

	require.NoError(t, a.Release(first))
	require.NoError(t, a.Release(second))
	require.NoError(t, a.Release(third))
}

func TestScenarioReuseFreedGap(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})

	first := claimFloat(t, a, 1.0)
	second := claimFloat(t, a, 2.0)
	third := claimFloat(t, a, 3.0)

	secondSegment, err := a.Segment(second)
	require.NoError(t, err)

	require.NoError(t, a.Release(second))
	require.Equal(t, 8, a.BytesClaimed())

	fourth := claimFloat(t, a, 4.0)
	require.Equal(t, 12, a.BytesClaimed())

	fourthSegment, err := a.Segment(fourth)
	require.NoError(t, err)
	require.Equal(t, secondSegment.Offset, fourthSegment.Offset)
	require.NotEqual(t, second, fourth)

	require.Equal(t, float32(1.0), lookupFloat(t, a, first))
	require.Equal(t, float32(3.0), lookupFloat(t, a, third))
	require.Equal(t, float32(4.0), lookupFloat(t, a, fourth))
}

func TestScenarioFragmentedThenCompacted(t *testing.T) {
	a := newArena(t, 12, arena.CreateOptions{})

	first := claimFloat(t, a, 1.0)
	second := claimFloat(t, a, 2.0)
	third := claimFloat(t, a, 3.0)

	require.NoError(t, a.Release(first))
	require.NoError(t, a.Release(third))
	require.Equal(t, 4, a.BytesClaimed())

	_, _, err := a.Claim(8)
	require.True(t, errors.Is(err, arena.ErrFragmented))
	require.False(t, errors.Is(err, arena.ErrOutOfSpace))

	generation := a.Generation()
	stats, err := a.Compact()
	require.NoError(t, err)
	require.Equal(t, 4, stats.BytesMoved)
	require.Equal(t, 1, stats.SegmentsMoved)
	require.Greater(t, a.Generation(), generation)

	segment, err := a.Segment(second)
	require.NoError(t, err)
	require.Equal(t, 0, segment.Offset)
	require.Equal(t, float32(2.0), lookupFloat(t, a, second))

	big, b, err := a.Claim(8)
	require.NoError(t, err)
	require.Len(t, b, 8)
	require.Equal(t, 12, a.BytesClaimed())

	segment, err = a.Segment(big)
	require.NoError(t, err)
	require.Equal(t, 4, segment.Offset)
}

func TestClaimReturnsLookupSlice(t *testing.T) {
	a := newArena(t, 32, arena.CreateOptions{})

	id, b, err := a.Claim(10)
	require.NoError(t, err)
	require.Equal(t, 10, len(b))
	require.Equal(t, 10, cap(b))
	require.Equal(t, 10, a.BytesClaimed())

	copy(b, "abcdefghij")
	looked, err := a.Lookup(id)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdefghij"), looked)
	require.Same(t, &b[0], &looked[0])
}

func TestClaimInvalidSize(t *testing.T) {
	a := newArena(t, 8, arena.CreateOptions{})

	_, _, err := a.Claim(0)
	require.True(t, errors.Is(err, arena.ErrInvalidSize))

	_, _, err = a.Claim(-1)
	require.True(t, errors.Is(err, arena.ErrInvalidSize))

	_, _, err = a.Claim(9)
	require.True(t, errors.Is(err, arena.ErrOutOfSpace))
	require.Equal(t, 0, a.SegmentCount())
}

func TestClaimHugeSizeAfterClaim(t *testing.T) {
	a := newArena(t, 12, arena.CreateOptions{})

	first := claimFloat(t, a, 7)

	_, _, err := a.Claim(math.MaxInt)
	require.True(t, errors.Is(err, arena.ErrOutOfSpace))

	_, _, err = a.ClaimAligned(math.MaxInt-2, 4)
	require.True(t, errors.Is(err, arena.ErrOutOfSpace))

	require.Equal(t, 4, a.BytesClaimed())
	require.Equal(t, 1, a.SegmentCount())
	require.NoError(t, a.Validate())
	require.Equal(t, float32(7), lookupFloat(t, a, first))

	_, b, err := a.Claim(8)
	require.NoError(t, err)
	require.Len(t, b, 8)
}

func TestClaimIDSpaceExhausted(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})
	require.NoError(t, a.AdvanceNextSegmentID(metadata.MaxSegmentID-1))

	last, _, err := a.Claim(4)
	require.NoError(t, err)
	require.Equal(t, metadata.MaxSegmentID-1, last)

	_, _, err = a.Claim(4)
	require.True(t, errors.Is(err, arena.ErrIDSpaceExhausted))
	require.Equal(t, 1, a.SegmentCount())
	require.Equal(t, 4, a.BytesClaimed())

	// Releasing does not give ids back
	require.NoError(t, a.Release(last))
	_, _, err = a.Claim(4)
	require.True(t, errors.Is(err, arena.ErrIDSpaceExhausted))
	require.NoError(t, a.Validate())
}

func TestReleaseBumpsGeneration(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})
	id := claimFloat(t, a, 1)

	generation := a.Generation()
	require.NoError(t, a.Release(id))
	require.Greater(t, a.Generation(), generation)

	generation = a.Generation()
	require.Error(t, a.Release(id))
	require.Equal(t, generation, a.Generation())
}

func TestClaimAligned(t *testing.T) {
	a := newArena(t, 32, arena.CreateOptions{})

	small, _, err := a.Claim(3)
	require.NoError(t, err)

	aligned, b, err := a.ClaimAligned(8, 8)
	require.NoError(t, err)
	require.Len(t, b, 8)

	segment, err := a.Segment(aligned)
	require.NoError(t, err)
	require.Equal(t, 8, segment.Offset)
	require.Equal(t, uint(8), segment.Alignment)
	require.Equal(t, 11, a.BytesClaimed())

	_, _, err = a.ClaimAligned(4, 3)
	require.True(t, errors.Is(err, arena.ErrInvalidAlignment))
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, _, err = a.ClaimAligned(4, 16)
	require.True(t, errors.Is(err, arena.ErrInvalidAlignment))

	// The aligned segment keeps its alignment through compaction
	require.NoError(t, a.Release(small))
	_, err = a.Compact()
	require.NoError(t, err)

	segment, err = a.Segment(aligned)
	require.NoError(t, err)
	require.Equal(t, 0, segment.Offset)
}

func TestCompactHonorsAlignment(t *testing.T) {
	a := newArena(t, 32, arena.CreateOptions{})

	first, _, err := a.Claim(4)
	require.NoError(t, err)
	odd, _, err := a.Claim(3)
	require.NoError(t, err)
	aligned, b, err := a.ClaimAligned(8, 8)
	require.NoError(t, err)
	copy(b, "12345678")

	require.NoError(t, a.Release(first))
	_, err = a.Compact()
	require.NoError(t, err)

	segment, err := a.Segment(odd)
	require.NoError(t, err)
	require.Equal(t, 0, segment.Offset)

	segment, err = a.Segment(aligned)
	require.NoError(t, err)
	require.Equal(t, 8, segment.Offset)

	looked, err := a.Lookup(aligned)
	require.NoError(t, err)
	require.Equal(t, []byte("12345678"), looked)
}

func TestClaimBestFit(t *testing.T) {
	a := newArena(t, 32, arena.CreateOptions{Strategy: metadata.ClaimStrategyMinMemory})

	big, _, err := a.Claim(8)
	require.NoError(t, err)
	_, _, err = a.Claim(4)
	require.NoError(t, err)
	gap, _, err := a.Claim(4)
	require.NoError(t, err)
	_, _, err = a.Claim(4)
	require.NoError(t, err)

	require.NoError(t, a.Release(big))
	require.NoError(t, a.Release(gap))

	id, _, err := a.Claim(4)
	require.NoError(t, err)
	segment, err := a.Segment(id)
	require.NoError(t, err)
	require.Equal(t, 12, segment.Offset)
}

func TestSegmentTableFull(t *testing.T) {
	a := newArena(t, 64, arena.CreateOptions{MaxSegments: 2})
	require.Equal(t, 2, a.MaxSegments())

	_, _, err := a.Claim(1)
	require.NoError(t, err)
	_, _, err = a.Claim(1)
	require.NoError(t, err)

	_, _, err = a.Claim(1)
	require.True(t, errors.Is(err, arena.ErrSegmentTableFull))
}

func TestDefaultSegmentLimit(t *testing.T) {
	a := newArena(t, 1024, arena.CreateOptions{})

	for i := 0; i < arena.DefaultMaxSegments; i++ {
		_, _, err := a.Claim(1)
		require.NoError(t, err)
	}

	_, _, err := a.Claim(1)
	require.True(t, errors.Is(err, arena.ErrSegmentTableFull))
}

func TestReleaseTwice(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})

	id, _, err := a.Claim(8)
	require.NoError(t, err)
	require.NoError(t, a.Release(id))
	require.Equal(t, 0, a.BytesClaimed())

	_, err = a.Lookup(id)
	require.True(t, errors.Is(err, arena.ErrUnknownSegment))
	require.True(t, errors.Is(a.Release(id), arena.ErrUnknownSegment))
	require.True(t, errors.Is(a.Release(metadata.NoSegment), arena.ErrUnknownSegment))
}

func TestIDsAreNeverReused(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})

	seen := make(map[metadata.SegmentID]struct{})
	for i := 0; i < 20; i++ {
		id, _, err := a.Claim(4)
		require.NoError(t, err)
		require.NotEqual(t, metadata.NoSegment, id)

		_, duplicate := seen[id]
		require.False(t, duplicate)
		seen[id] = struct{}{}

		require.NoError(t, a.Release(id))
	}
}

func TestCompactPreservesOrderAndBytes(t *testing.T) {
	a := newArena(t, 64, arena.CreateOptions{})

	var ids []metadata.SegmentID
	var contents [][]byte
	for i := 0; i < 8; i++ {
		size := i + 1
		id, b, err := a.Claim(size)
		require.NoError(t, err)
		for j := range b {
			b[j] = byte(i*16 + j)
		}

		ids = append(ids, id)
		contents = append(contents, bytes.Clone(b))
	}

	for i := 0; i < len(ids); i += 2 {
		require.NoError(t, a.Release(ids[i]))
	}

	_, err := a.Compact()
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	expectedOffset := 0
	for i := 1; i < len(ids); i += 2 {
		segment, err := a.Segment(ids[i])
		require.NoError(t, err)
		require.Equal(t, expectedOffset, segment.Offset)
		expectedOffset += segment.Size

		looked, err := a.Lookup(ids[i])
		require.NoError(t, err)
		require.Equal(t, contents[i], looked)
	}
	require.Equal(t, a.BytesClaimed(), expectedOffset)

	// A single free range remains at the end
	id, _, err := a.Claim(a.Capacity() - a.BytesClaimed())
	require.NoError(t, err)
	require.NotEqual(t, metadata.NoSegment, id)
}

func TestCompactAlreadyCompact(t *testing.T) {
	a := newArena(t, 16, arena.CreateOptions{})

	_, _, err := a.Claim(4)
	require.NoError(t, err)

	generation := a.Generation()
	stats, err := a.Compact()
	require.NoError(t, err)
	require.Equal(t, 0, stats.SegmentsMoved)
	require.Equal(t, generation, a.Generation())
}

func TestDestroyUnreleased(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	a, err := arena.New(logger, 16, arena.CreateOptions{})
	require.NoError(t, err)

	id, _, err := a.Claim(4)
	require.NoError(t, err)

	generation := a.Generation()
	err = a.Destroy()
	require.True(t, errors.Is(err, arena.ErrUnreleasedSegments))
	require.False(t, a.IsInitialized())
	require.Greater(t, a.Generation(), generation)
	require.Equal(t, 0, a.Capacity())

	require.Contains(t, logs.String(), "[UNRELEASED MEMORY] unreleased segment")
	require.Contains(t, logs.String(), "size=4")

	_, err = a.Lookup(id)
	require.True(t, errors.Is(err, arena.ErrNotInitialized))

	// A destroyed arena can be initialized again
	require.NoError(t, a.Init(logger, 8, arena.CreateOptions{}))
	require.NoError(t, a.Destroy())
}

func TestDestroyClean(t *testing.T) {
	a, err := arena.New(nil, 16, arena.CreateOptions{})
	require.NoError(t, err)

	id, _, err := a.Claim(4)
	require.NoError(t, err)
	require.NoError(t, a.Release(id))
	require.NoError(t, a.Destroy())
}

func TestDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := arena.New(logger, 16, arena.CreateOptions{})
	require.NoError(t, err)

	id, _, err := a.Claim(4)
	require.NoError(t, err)
	require.NoError(t, a.Release(id))
	require.NoError(t, a.Destroy())

	require.Contains(t, logs.String(), "Arena::ClaimAligned")
	require.Contains(t, logs.String(), "Arena::Release")
	require.Contains(t, logs.String(), "Arena::Destroy")
}
