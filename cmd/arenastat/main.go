package main

import (
	"fmt"
	"os"

	"github.com/fulldump/goconfig"
	"golang.org/x/exp/slog"
)

type Config struct {
	Capacity     int     `usage:"arena capacity in bytes"`
	MaxSegments  int     `usage:"maximum number of live segments, 0 for the default"`
	Ops          int     `usage:"number of claim / release operations to perform"`
	Seed         int64   `usage:"random seed for the workload"`
	MaxClaim     int     `usage:"largest claim size in bytes"`
	ReleaseRatio float64 `usage:"chance that an operation releases a live segment instead of claiming"`
	Strategy     string  `usage:"claim strategy: minoffset | minmemory"`
	PassBytes    int     `usage:"bytes relocated per compaction pass, 0 compacts in one pass"`
	Detailed     bool    `usage:"list every segment and free range in the output"`
	Verbose      bool    `usage:"log arena operations to stderr"`
}

func main() {
	c := Config{
		Capacity:     64 * 1024,
		MaxSegments:  0,
		Ops:          10_000,
		Seed:         1,
		MaxClaim:     512,
		ReleaseRatio: 0.4,
		Strategy:     "minoffset",
		PassBytes:    0,
	}
	goconfig.Read(&c)

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	result, err := runWorkload(logger, c)
	if err != nil {
		logger.Error("workload failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("workload complete",
		slog.Int("Claims", result.Claims),
		slog.Int("Releases", result.Releases),
		slog.Int("FailedClaims", result.FailedClaims),
		slog.Int("Compactions", result.Compactions),
		slog.Int("RetriedClaims", result.RetriedClaims),
		slog.Int("BytesMoved", result.Stats.BytesMoved),
	)

	fmt.Println(result.Report)
}
