package combiner

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// MergeFunc joins the input files into a single output file without
// re-encoding. It is a field on Combiner so tests can substitute a fake
// instead of invoking ffmpeg.
type MergeFunc func(inputs []string, output string) error

// Combiner merges temporally adjacent exported segments per camera into
// continuous files.
type Combiner struct {
	Tolerance      time.Duration
	KeepSplitFiles bool

	merge MergeFunc
}

// New creates a Combiner using the ffmpeg concat demuxer for merging.
func New(tolerance time.Duration, keepSplitFiles bool) *Combiner {
	return NewWithMergeFunc(tolerance, keepSplitFiles, ffmpegConcat)
}

// NewWithMergeFunc creates a Combiner with a custom merge executor, so
// grouping and failure policy can be exercised without ffmpeg installed.
func NewWithMergeFunc(tolerance time.Duration, keepSplitFiles bool, merge MergeFunc) *Combiner {
	return &Combiner{
		Tolerance:      tolerance,
		KeepSplitFiles: keepSplitFiles,
		merge:          merge,
	}
}

// CombineDirectory scans dir for exported segment files, groups adjacent
// segments per camera, and merges every group of two or more into one file
// spanning the group's full range. A failed merge preserves that group's
// originals and does not affect other groups or cameras. Returns the paths
// of the merged files it produced.
func (c *Combiner) CombineDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
	}

	byCamera := make(map[string][]Segment)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		seg, err := ParseSegmentName(entry.Name())
		if err != nil {
			// Exporters drop other files too (thumbnails, partials); skip them
			continue
		}
		seg.Path = filepath.Join(dir, entry.Name())
		byCamera[seg.Camera] = append(byCamera[seg.Camera], seg)
	}

	var merged []string
	for camera, segments := range byCamera {
		groups := GroupContiguous(segments, c.Tolerance)
		for _, group := range groups {
			if len(group) < 2 {
				continue
			}
			out, err := c.mergeGroup(dir, camera, group)
			if err != nil {
				log.Printf("Combiner: merge failed for camera %s (%d segments): %v", camera, len(group), err)
				continue
			}
			merged = append(merged, out)
		}
	}
	return merged, nil
}

// mergeGroup merges one contiguous run into a file named for the run's full
// span and optionally removes the originals.
func (c *Combiner) mergeGroup(dir, camera string, group []Segment) (string, error) {
	start := group[0].Start
	end := group[0].End
	inputs := make([]string, len(group))
	for i, seg := range group {
		inputs[i] = seg.Path
		if seg.Start.Before(start) {
			start = seg.Start
		}
		if seg.End.After(end) {
			end = seg.End
		}
	}

	outPath := filepath.Join(dir, SegmentName(camera, start, end))
	if _, err := os.Stat(outPath); err == nil {
		// A previous run already produced this span (re-invocation for the
		// same identifier lands in the same folder)
		log.Printf("Combiner: merged file %s already exists, skipping", filepath.Base(outPath))
		return outPath, nil
	}
	log.Printf("Combiner: merging %d segments for camera %s into %s", len(group), camera, filepath.Base(outPath))
	if err := c.merge(inputs, outPath); err != nil {
		// Leave a partial output behind and the next run would re-merge it
		os.Remove(outPath)
		return "", err
	}

	if !c.KeepSplitFiles {
		for _, in := range inputs {
			if err := os.Remove(in); err != nil {
				log.Printf("Combiner: failed to remove original segment %s: %v", in, err)
			}
		}
	}
	return outPath, nil
}

// ffmpegConcat joins MP4 files at the container level using the concat
// demuxer with stream copy, no re-encoding.
func ffmpegConcat(inputs []string, output string) error {
	listPath := output + ".concat.txt"
	listFile, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list file: %w", err)
	}
	defer os.Remove(listPath)

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			listFile.Close()
			return fmt.Errorf("failed to get absolute path for segment: %w", err)
		}
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", abs); err != nil {
			listFile.Close()
			return fmt.Errorf("failed to write concat list: %w", err)
		}
	}
	listFile.Close()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %v\nOutput: %s", err, string(out))
	}
	return nil
}
