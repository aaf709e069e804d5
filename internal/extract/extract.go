// Package extract drives the external archiver over the downloaded
// multi-part archive and locates its inputs and outputs on disk.
package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vargulf/hvseed/utils"
)

var (
	firstSegmentRegex = regexp.MustCompile(`(?i)\.7z\.0*1$`)
	segmentRegex      = regexp.MustCompile(`(?i)\.7z\.\d+$`)
	diskImageRegex    = regexp.MustCompile(`(?i)\.vhdx?$`)
)

// ArchiverError reports a non-zero archiver exit.
type ArchiverError struct {
	Code   int
	Output string
}

func (e *ArchiverError) Error() string {
	return fmt.Sprintf("archiver exited with code %d", e.Code)
}

type Archiver struct {
	Path string
}

// Run invokes the archiver on the first segment with extract-mode, the
// output directory, and auto-confirmation, and waits for it to exit.
func (a *Archiver) Run(ctx context.Context, firstSegment string, outDir string) error {
	log := utils.GetLogger("extract")
	cmd := exec.CommandContext(ctx, a.Path, "e", firstSegment, "-o"+outDir, "-y")
	log.Debug().Str("archiver", a.Path).Str("segment", filepath.Base(firstSegment)).Msg("Invoking archiver")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ArchiverError{Code: exitErr.ExitCode(), Output: string(output)}
		}
		return fmt.Errorf("error running archiver: %w", err)
	}
	log.Debug().Str("output", strings.TrimSpace(string(output))).Msg("Archiver finished")
	return nil
}

// FirstSegment returns the path of the first archive segment in dir, or ""
// when no file matches the first-segment naming pattern.
func FirstSegment(dir string) (string, error) {
	return findMatch(dir, firstSegmentRegex)
}

// DiskImage returns the path of the extracted disk image in dir, or "" when
// none is present.
func DiskImage(dir string) (string, error) {
	return findMatch(dir, diskImageRegex)
}

// Segments lists every archive segment file in dir, in directory order.
func Segments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", dir, err)
	}
	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if segmentRegex.MatchString(entry.Name()) {
			segments = append(segments, filepath.Join(dir, entry.Name()))
		}
	}
	return segments, nil
}

func findMatch(dir string, pattern *regexp.Regexp) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("error reading directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern.MatchString(entry.Name()) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}
