package hlsplaylist

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseMaster parses a master (multivariant) playlist, extracting the
// bandwidth/URI of each variant stream. Non-variant content is ignored.
func ParseMaster(data []byte) (*MasterPlaylist, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	mp := &MasterPlaylist{}
	var pendingBandwidth int
	var havePending bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pendingBandwidth = parseBandwidth(line)
			havePending = true
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			if havePending {
				mp.Variants = append(mp.Variants, Variant{Bandwidth: pendingBandwidth, URI: line})
				havePending = false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hlsplaylist: scan master: %w", err)
	}
	return mp, nil
}

func parseBandwidth(attrLine string) int {
	attrs := attrLine[strings.Index(attrLine, ":")+1:]
	for _, field := range strings.Split(attrs, ",") {
		field = strings.TrimSpace(field)
		if strings.HasPrefix(field, "BANDWIDTH=") {
			v := strings.TrimPrefix(field, "BANDWIDTH=")
			n, err := strconv.Atoi(v)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// SelectVariant picks the highest-bandwidth variant; ties resolve to the
// first one encountered in playlist order.
func SelectVariant(mp *MasterPlaylist) (Variant, bool) {
	if len(mp.Variants) == 0 {
		return Variant{}, false
	}
	best := mp.Variants[0]
	for _, v := range mp.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// IsMasterPlaylist reports whether a fetched playlist body is a master
// (multivariant) playlist rather than a media playlist, by the presence of
// any #EXT-X-STREAM-INF tag.
func IsMasterPlaylist(data []byte) bool {
	return bytes.Contains(data, []byte("#EXT-X-STREAM-INF:"))
}

// ParseMedia parses a media playlist, extracting target duration, media
// sequence, program-date-time and segment entries.
func ParseMedia(data []byte) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	mp := &MediaPlaylist{}

	var pendingDuration float64
	var havePendingDuration bool
	var explicitPDT *time.Time
	// currentPDT is the running program-date-time clock: it starts at the
	// most recently seen #EXT-X-PROGRAM-DATE-TIME tag and is advanced by
	// each segment's duration afterward, mirroring how a live source
	// commonly tags PDT once (or only at a discontinuity) rather than on
	// every segment. Without this, trimming the window past the one
	// explicitly-tagged segment would silently drop PDT from every
	// subsequent republished playlist.
	var currentPDT *time.Time

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				mp.TargetDuration = f
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			v := strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:")
			if n, err := strconv.Atoi(v); err == nil {
				mp.MediaSequence = n
			}
		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			v := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			if t, err := parsePDT(v); err == nil {
				explicitPDT = &t
				currentPDT = &t
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			v := strings.TrimPrefix(line, "#EXTINF:")
			v = strings.TrimSuffix(v, ",")
			if idx := strings.Index(v, ","); idx >= 0 {
				v = v[:idx]
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				pendingDuration = f
				havePendingDuration = true
			}
		case line == "#EXT-X-ENDLIST":
			mp.IsVOD = true
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			if havePendingDuration {
				segPDT := explicitPDT
				if segPDT == nil {
					segPDT = currentPDT
				}
				mp.Segments = append(mp.Segments, Segment{
					URI:             line,
					Duration:        pendingDuration,
					ProgramDateTime: segPDT,
				})
				if currentPDT != nil {
					next := currentPDT.Add(time.Duration(pendingDuration * float64(time.Second)))
					currentPDT = &next
				}
				havePendingDuration = false
				explicitPDT = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hlsplaylist: scan media: %w", err)
	}
	return mp, nil
}

func parsePDT(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
