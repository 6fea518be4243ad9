// Package postprocess renders cues to WebVTT and SubRip and implements
// the three mutually-exclusive output modes (sidecar, hard-burn, embedded)
// as a tagged variant over an external muxer child process.
package postprocess

import (
	"fmt"
	"strings"

	"github.com/hlscap/retranscoder/internal/transcribe"
)

// RenderWebVTT renders cues to a WebVTT blob: header line, blank line, then
// per cue a monotonically increasing integer, a millisecond-precision
// timestamp range using "." as the separator, the cue text, and a blank
// line. An empty cue list renders as the bare header; callers that want to
// skip empty tracks check the cue count before rendering.
func RenderWebVTT(cues []transcribe.Cue) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(c.Start, '.'), formatTimestamp(c.End, '.'), c.Text)
	}
	return []byte(b.String())
}

// RenderSRT renders cues to SubRip format: identical to WebVTT rendering
// except the millisecond separator is "," and there is no "WEBVTT" header.
func RenderSRT(cues []transcribe.Cue) []byte {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(c.Start, ','), formatTimestamp(c.End, ','), c.Text)
	}
	return []byte(b.String())
}

// formatTimestamp folds seconds into HH:MM:SS<sep>mmm by hour-modular
// formatting, matching both the WebVTT and SubRip on-disk formats.
func formatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	ms := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}
