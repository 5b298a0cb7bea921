package combiner

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const tsLayout = "20060102_150405"

// Segment describes one exported recording file covering a sub-range of an
// event's time window, derived entirely from the file name.
type Segment struct {
	Camera string
	Start  time.Time
	End    time.Time
	Path   string
}

// Duration returns the time span the segment covers.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// ParseSegmentName parses an exported file name of the form
// <camera>_<YYYYMMDD>_<HHMMSS>_<YYYYMMDD>_<HHMMSS>.mp4 into a Segment.
// Camera names may contain underscores, so the timestamps anchor from the
// tail of the name.
func ParseSegmentName(name string) (Segment, error) {
	base := strings.TrimSuffix(name, ".mp4")
	if base == name {
		return Segment{}, fmt.Errorf("not an mp4 file: %s", name)
	}
	parts := strings.Split(base, "_")
	if len(parts) < 5 {
		return Segment{}, fmt.Errorf("invalid segment filename: %s", name)
	}
	tail := parts[len(parts)-4:]
	camera := strings.Join(parts[:len(parts)-4], "_")
	if camera == "" {
		return Segment{}, fmt.Errorf("missing camera name in segment filename: %s", name)
	}

	start, err := time.Parse(tsLayout, tail[0]+"_"+tail[1])
	if err != nil {
		return Segment{}, fmt.Errorf("invalid start timestamp in %s: %w", name, err)
	}
	end, err := time.Parse(tsLayout, tail[2]+"_"+tail[3])
	if err != nil {
		return Segment{}, fmt.Errorf("invalid end timestamp in %s: %w", name, err)
	}
	if end.Before(start) {
		return Segment{}, fmt.Errorf("segment end before start in %s", name)
	}
	return Segment{Camera: camera, Start: start, End: end}, nil
}

// SegmentName renders the canonical file name for a segment spanning
// [start, end] on camera.
func SegmentName(camera string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s.mp4", camera, start.Format(tsLayout), end.Format(tsLayout))
}

// GroupContiguous sorts segments by start time and splits them into runs of
// temporally adjacent segments: a segment joins the current run when the gap
// between the run's end and its start is within tolerance. Overlapping
// segments count as adjacent. Input is assumed to be a single camera.
func GroupContiguous(segments []Segment, tolerance time.Duration) [][]Segment {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var groups [][]Segment
	current := []Segment{sorted[0]}
	runEnd := sorted[0].End
	for _, seg := range sorted[1:] {
		if seg.Start.Sub(runEnd) <= tolerance {
			current = append(current, seg)
			if seg.End.After(runEnd) {
				runEnd = seg.End
			}
		} else {
			groups = append(groups, current)
			current = []Segment{seg}
			runEnd = seg.End
		}
	}
	groups = append(groups, current)
	return groups
}
