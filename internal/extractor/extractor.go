package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// how much of ffmpeg's output to keep when it fails
const outputTail = 2048

// Options configures how frames are sampled from a video
type Options struct {
	FFmpegPath string
	FramesDir  string
	Width      int
	Step       int
	Timeout    time.Duration
}

// Extractor decodes a video into a sparse set of JPEG frames using ffmpeg
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an extractor writing under opts.FramesDir
func New(opts Options, logger *slog.Logger) *Extractor {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Extractor{opts: opts, logger: logger}
}

// FrameDir returns the directory that holds the frames of videoPath: the base
// filename up to its first dot, under framesDir.
func FrameDir(framesDir, videoPath string) string {
	name := filepath.Base(videoPath)
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return filepath.Join(framesDir, name)
}

// ExtractFrames writes frame_%04d.jpg files for videoPath and returns their
// directory. A failing ffmpeg run is logged, not returned: the directory then
// holds zero or partial frames and callers treat that as missing data.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string) (string, error) {
	frameDirPath := FrameDir(e.opts.FramesDir, videoPath)
	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	e.logger.DebugContext(ctx, "extracting frames",
		"video", videoPath,
		"dir", frameDirPath,
		"width", e.opts.Width,
		"step", e.opts.Step,
	)

	cmd := exec.CommandContext(ctx, e.opts.FFmpegPath, e.args(videoPath, frameDirPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.WarnContext(ctx, "ffmpeg did not finish cleanly",
			"video", videoPath,
			tint.Err(err),
			"output", tail(output),
		)
	}

	return frameDirPath, nil
}

func (e *Extractor) args(videoPath, frameDirPath string) []string {
	return []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("scale=%d:-1,select='not(mod(n,%d))'", e.opts.Width, e.opts.Step),
		"-vsync", "vfr",
		filepath.Join(frameDirPath, "frame_%04d.jpg"),
	}
}

// ListFrames returns the JPEG files in dir sorted by name. A missing
// directory yields no frames.
func ListFrames(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", dir, err)
	}

	var frames []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			frames = append(frames, filepath.Join(dir, file.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

func tail(b []byte) string {
	if len(b) > outputTail {
		b = b[len(b)-outputTail:]
	}
	return strings.TrimSpace(string(b))
}
