package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// VolumeStats holds volumedetect results in dBFS
type VolumeStats struct {
	MeanVolume float64
	MaxVolume  float64
}

// PeakGain is the linear gain that would bring the peak to full scale
func (v VolumeStats) PeakGain() float64 {
	return math.Pow(10, -v.MaxVolume/20)
}

// AnalyzeVolume runs volumedetect over the audio of input
func (e *Executor) AnalyzeVolume(ctx context.Context, input string) (*VolumeStats, error) {
	e.logger.Info().Str("input", input).Msg("analyzing volume")

	var (
		mu    sync.Mutex
		lines []string
	)
	err := e.Run(ctx, RunOptions{
		Args: []string{
			"-i", input,
			"-vn",
			"-af", "volumedetect",
			"-f", "null",
			"-",
		},
		LogHandler: func(line string) {
			if strings.Contains(line, "_volume:") {
				mu.Lock()
				lines = append(lines, line)
				mu.Unlock()
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("volume analysis failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return parseVolumeOutput(lines)
}

// parseVolumeOutput reads "mean_volume: -20.1 dB" style lines
func parseVolumeOutput(lines []string) (*VolumeStats, error) {
	stats := &VolumeStats{}
	var seen int
	for _, line := range lines {
		for key, dst := range map[string]*float64{
			"mean_volume:": &stats.MeanVolume,
			"max_volume:":  &stats.MaxVolume,
		} {
			_, rest, ok := strings.Cut(line, key)
			if !ok {
				continue
			}
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				continue
			}
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", strings.TrimSuffix(key, ":"), fields[0], err)
			}
			*dst = v
			seen++
		}
	}
	if seen == 0 {
		return nil, fmt.Errorf("no volume statistics in ffmpeg output (file has no audio?)")
	}
	return stats, nil
}
