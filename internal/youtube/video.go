package youtube

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	RE_YOUTUBE  = `(?:youtube\.com\/(?:[^\/]+\/.+\/|(?:v|e(?:mbed)?|shorts)\/|.*[?&]v=)|youtu\.be\/)([^"&?\/\s]{11})`
	RE_VIDEO_ID = `^[a-zA-Z0-9_-]{11}$`
)

var (
	reYoutube = regexp.MustCompile(RE_YOUTUBE)
	reVideoID = regexp.MustCompile(RE_VIDEO_ID)
)

// ExtractVideoID accepts a bare 11 character id or any common YouTube URL form.
func ExtractVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if reVideoID.MatchString(ref) {
		return ref, nil
	}
	if match := reYoutube.FindStringSubmatch(ref); match != nil && reVideoID.MatchString(match[1]) {
		return match[1], nil
	}
	return "", fmt.Errorf("invalid YouTube URL or video ID: %q", ref)
}

// WatchURL is the canonical page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Window is a caption time range in milliseconds. End is exclusive; a zero End means open ended.
type Window struct {
	StartMs int
	EndMs   int
}

// ParseTimestamp reads "90", "90.5", "1:30" or "1:02:03" as milliseconds.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var seconds float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if i < len(parts)-1 && v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		seconds = seconds*60 + v
	}
	return int(math.Round(seconds * 1000)), nil
}

// NewWindow builds a window from optional start/end timestamps. An empty start means
// the beginning of the video and an empty end means its end.
func NewWindow(start, end string) (Window, error) {
	var w Window
	var err error
	if start != "" {
		if w.StartMs, err = ParseTimestamp(start); err != nil {
			return Window{}, err
		}
	}
	if end != "" {
		if w.EndMs, err = ParseTimestamp(end); err != nil {
			return Window{}, err
		}
		if w.EndMs <= w.StartMs {
			return Window{}, fmt.Errorf("end %q is not after start %q", end, start)
		}
	}
	return w, nil
}

// Contains reports whether the segment's [offset, offset+duration) interval overlaps the window.
func (w Window) Contains(seg Segment) bool {
	segStart := seg.OffsetMs
	segEnd := seg.OffsetMs + seg.DurationMs
	if w.EndMs > 0 && segStart >= w.EndMs {
		return false
	}
	return segEnd > w.StartMs
}

// Filter keeps the segments overlapping the window, in order.
func (w Window) Filter(segments []Segment) []Segment {
	var out []Segment
	for _, seg := range segments {
		if w.Contains(seg) {
			out = append(out, seg)
		}
	}
	return out
}

// JoinText flattens segments into a single space separated transcript.
func JoinText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
