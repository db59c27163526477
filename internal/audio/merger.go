package audio

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Bitrates for the two merge levels. Chapter output stays smaller; a whole
// book gets the higher rate.
const (
	ChapterBitrate = "128k"
	BookBitrate    = "192k"
)

// Merger concatenates audio segments into a single MP3 using ffmpeg,
// inserting a fixed silence gap between segments.
type Merger struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	stat        func(name string) (os.FileInfo, error)
}

// NewMerger constructs the production merger with OS dependencies.
func NewMerger(ffmpegPath, ffprobePath string) *Merger {
	return &Merger{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
		stat:        os.Stat,
	}
}

// newMergerForTests constructs a merger with an injectable runner.
func newMergerForTests(ffmpegPath, ffprobePath string, runner commandRunner, stat func(string) (os.FileInfo, error)) *Merger {
	return &Merger{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner, stat: stat}
}

// Merge concatenates segmentPaths in order into an MP3 at outPath. Each
// segment except the last is padded with gap of trailing silence. Segment
// order is the caller's responsibility; this never reorders inputs.
func (m *Merger) Merge(ctx context.Context, segmentPaths []string, gap time.Duration, bitrate, outPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("merge: no segments")
	}
	for _, p := range segmentPaths {
		if _, err := m.stat(p); err != nil {
			return fmt.Errorf("merge: segment missing: %s: %w", p, err)
		}
	}

	args := buildMergeArgs(segmentPaths, gap, bitrate, outPath)
	result, err := m.runner.Run(ctx, m.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg merge failed (exit=%d): %s: %w",
			result.ExitCode, lastLine(result.Stderr), err)
	}

	if _, err := m.stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg completed but output is missing: %s: %w", outPath, err)
	}
	return nil
}

// Duration reports the length of an audio file in seconds via ffprobe.
func (m *Merger) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	result, err := m.runner.Run(ctx, m.ffprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed (exit=%d): %s: %w",
			result.ExitCode, lastLine(result.Stderr), err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(result.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparseable duration %q: %w", result.Stdout, err)
	}
	return secs, nil
}

// buildMergeArgs builds the ffmpeg invocation: every segment except the last
// goes through apad for the inter-segment gap, then all streams concat into
// one MP3 at the requested bitrate.
func buildMergeArgs(segmentPaths []string, gap time.Duration, bitrate, outPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, p := range segmentPaths {
		args = append(args, "-i", p)
	}

	n := len(segmentPaths)
	if n == 1 {
		return append(args, "-c:a", "libmp3lame", "-b:a", bitrate, outPath)
	}

	gapSecs := strconv.FormatFloat(gap.Seconds(), 'f', -1, 64)
	var filter strings.Builder
	for i := 0; i < n-1; i++ {
		fmt.Fprintf(&filter, "[%d:a]apad=pad_dur=%s[a%d];", i, gapSecs, i)
	}
	for i := 0; i < n-1; i++ {
		fmt.Fprintf(&filter, "[a%d]", i)
	}
	fmt.Fprintf(&filter, "[%d:a]concat=n=%d:v=0:a=1[out]", n-1, n)

	return append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		outPath,
	)
}

// lastLine trims ffmpeg's noisy stderr down to its final line, which is
// where the actual error lands.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
