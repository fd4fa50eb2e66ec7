// Package clip cuts a short preview segment out of a media file using an
// external converter binary. The segment start is an explicit timestamp or,
// by default, randomized so repeated grabs of the same title sample
// different footage.
package clip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seriarr/seriarr/internal/data"
)

const (
	// startFloor is the earliest acceptable segment start, skipping intros.
	startFloor = 30 * time.Second
	// tailMargin keeps the segment clear of the final credits fade.
	tailMargin = 10 * time.Second
)

// ChooseStart picks a random segment start within [min(startFloor, maxStart),
// maxStart] where maxStart = total - segment - tailMargin. Returns an error
// when the source is too short to hold the segment at all.
func ChooseStart(total, segment time.Duration) (time.Duration, error) {
	maxStart := total - segment - tailMargin
	if maxStart < 0 {
		return 0, fmt.Errorf("source %s too short for %s segment", total, segment)
	}
	lo := startFloor
	if maxStart < lo {
		lo = maxStart
	}
	if maxStart == lo {
		return lo, nil
	}
	return lo + time.Duration(rand.Int63n(int64(maxStart-lo))), nil
}

// Options configures one extraction.
type Options struct {
	SegmentLength time.Duration
	// Start, when set, is the explicit segment offset; it is clamped so the
	// segment still fits before the tail margin. Nil picks a random start.
	Start        *time.Duration
	KeepOriginal bool
	OutputDir    string
}

// runFunc executes the converter and returns combined stderr output on
// failure for diagnostics.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Extractor produces segment files from full media files.
type Extractor struct {
	bin      string
	probe    string
	log      *slog.Logger
	run      runFunc
	lookPath func(string) (string, error)
	duration func(ctx context.Context, path string) (time.Duration, error)
	randSrc  func(total, segment time.Duration) (time.Duration, error)
	stat     func(string) (os.FileInfo, error)
	remove   func(string) error
}

// NewExtractor builds an Extractor around the ffmpeg/ffprobe pair.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	e := &Extractor{
		bin:      "ffmpeg",
		probe:    "ffprobe",
		log:      log,
		run:      execRun,
		lookPath: exec.LookPath,
		randSrc:  ChooseStart,
		stat:     os.Stat,
		remove:   os.Remove,
	}
	e.duration = e.probeDuration
	return e
}

// Available reports whether the converter binaries can be found. Callers
// treat a false result as data.ErrConverterUnavailable.
func (e *Extractor) Available() bool {
	if _, err := e.lookPath(e.bin); err != nil {
		return false
	}
	if _, err := e.lookPath(e.probe); err != nil {
		return false
	}
	return true
}

// Extract cuts a segment out of path and returns the segment file path. The
// original file is deleted only after the segment is confirmed on disk, and
// only when KeepOriginal is false; any failure leaves the original intact.
func (e *Extractor) Extract(ctx context.Context, path string, opts Options) (string, error) {
	if !e.Available() {
		return "", data.ErrConverterUnavailable
	}
	if opts.SegmentLength <= 0 {
		opts.SegmentLength = 30 * time.Second
	}

	total, err := e.duration(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
	}
	var start time.Duration
	if opts.Start != nil {
		start, err = clampStart(*opts.Start, total, opts.SegmentLength)
	} else {
		start, err = e.randSrc(total, opts.SegmentLength)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
	}

	out := segmentPath(path, opts.OutputDir)
	args := []string{
		"-ss", strconv.FormatFloat(start.Seconds(), 'f', 2, 64),
		"-i", path,
		"-t", strconv.FormatFloat(opts.SegmentLength.Seconds(), 'f', 2, 64),
		"-c", "copy",
		"-y", out,
	}
	e.log.Info("clip extract", "src", filepath.Base(path), "start", start, "len", opts.SegmentLength)
	if stderr, err := e.run(ctx, e.bin, args...); err != nil {
		_ = e.remove(out)
		return "", fmt.Errorf("%w: %v: %s", data.ErrConversionFailed, err, tail(stderr))
	}

	info, err := e.stat(out)
	if err != nil || info.Size() == 0 {
		_ = e.remove(out)
		return "", fmt.Errorf("%w: segment missing or empty", data.ErrConversionFailed)
	}

	if !opts.KeepOriginal {
		if err := e.remove(path); err != nil {
			e.log.Warn("clip remove original", "path", path, "err", err)
		}
	}
	return out, nil
}

// probeDuration asks the probe binary for the container duration in seconds.
func (e *Extractor) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, e.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, errors.New("unparseable duration")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// clampStart bounds an explicit offset so the segment and tail margin still
// fit. Negative offsets pin to zero.
func clampStart(start, total, segment time.Duration) (time.Duration, error) {
	maxStart := total - segment - tailMargin
	if maxStart < 0 {
		return 0, fmt.Errorf("source %s too short for %s segment", total, segment)
	}
	if start < 0 {
		start = 0
	}
	if start > maxStart {
		start = maxStart
	}
	return start, nil
}

func segmentPath(src, dir string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if dir == "" {
		dir = filepath.Dir(src)
	}
	return filepath.Join(dir, base+".clip"+filepath.Ext(src))
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
