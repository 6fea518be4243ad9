package hlsplaylist

const (
	// DefaultTargetBufferSecs is the desired sliding-window length.
	DefaultTargetBufferSecs = 60.0
	// DefaultMaxTargetBufferSecs is the hard cap that triggers a trim.
	DefaultMaxTargetBufferSecs = 120.0
	// DefaultTargetDuration is used when the upstream media playlist omits
	// EXT-X-TARGETDURATION.
	DefaultTargetDuration = 10.0
)

// Trim enforces the sliding-window bound: when the segment count exceeds
// maxBufferSecs/targetDuration, only the last targetBufferSecs/targetDuration
// segments are kept. The media sequence number and the first retained
// segment's program-date-time (if any) are advanced accordingly.
func Trim(mp *MediaPlaylist, targetBufferSecs, maxBufferSecs float64) *MediaPlaylist {
	out := mp.Clone()

	duration := out.TargetDuration
	if duration <= 0 {
		duration = DefaultTargetDuration
	}

	maxCount := int(maxBufferSecs / duration)
	if maxCount < 1 {
		maxCount = 1
	}
	if len(out.Segments) <= maxCount {
		return out
	}

	keepCount := int(targetBufferSecs / duration)
	if keepCount < 1 {
		keepCount = 1
	}
	if keepCount > len(out.Segments) {
		keepCount = len(out.Segments)
	}

	dropped := len(out.Segments) - keepCount
	out.Segments = out.Segments[dropped:]
	out.MediaSequence += dropped
	return out
}
