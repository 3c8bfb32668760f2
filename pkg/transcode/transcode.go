// Package transcode applies pixel-level ffmpeg filters to downloaded
// videos. Filtering re-encodes the video stream and copies the audio
// stream untouched.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// filters maps filter names to ffmpeg -vf expressions.
var filters = map[string]string{
	"grayscale": "hue=s=0",
	"mirror":    "hflip",
	"noise":     "noise=alls=1:allf=t",
	"sharpen":   "unsharp=5:5:1.0:5:5:0.0",
}

// Filters returns the supported filter names in sorted order.
func Filters() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidFilter reports whether name is a supported filter.
func IsValidFilter(name string) bool {
	_, ok := filters[name]
	return ok
}

// Transcoder runs ffmpeg filter passes on video files.
type Transcoder struct {
	ffmpegPath string
}

// NewTranscoder creates a transcoder using the given ffmpeg binary.
// An empty binPath falls back to "ffmpeg" resolved from PATH.
func NewTranscoder(binPath string) (*Transcoder, error) {
	if binPath == "" {
		binPath = "ffmpeg"
	}

	ffmpegPath, err := exec.LookPath(binPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	return &Transcoder{ffmpegPath: ffmpegPath}, nil
}

// Version returns the first line of ffmpeg -version output.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, t.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

// Apply re-encodes inputPath into outputPath with the named filter.
func (t *Transcoder) Apply(ctx context.Context, inputPath, outputPath, filter string) error {
	expr, ok := filters[filter]
	if !ok {
		return fmt.Errorf("unknown filter %q", filter)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-i", inputPath,
		"-vf", expr,
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			if idx := strings.LastIndexByte(msg, '\n'); idx != -1 {
				msg = strings.TrimSpace(msg[idx+1:])
			}
			return fmt.Errorf("apply filter %s: %s", filter, msg)
		}
		return fmt.Errorf("apply filter %s: %w", filter, err)
	}

	// ffmpeg can exit zero without producing output on some malformed inputs.
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("filtered output missing: %w", err)
	}

	return nil
}
