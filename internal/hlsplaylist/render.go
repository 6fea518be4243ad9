package hlsplaylist

import (
	"fmt"
	"strings"
)

// RenderMedia serializes a media playlist, rewriting each segment's URI via
// uriFor. Pass hlsplaylist.PublishedURI composed with hlsplaylist.SidecarURI
// (etc.) to build subtitle playlists from the same media playlist.
func RenderMedia(mp *MediaPlaylist, uriFor func(Segment) string) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:5\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(mp.TargetDuration+0.999999))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", mp.MediaSequence)
	b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")

	for i, seg := range mp.Segments {
		if i == 0 && seg.ProgramDateTime != nil {
			fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.ProgramDateTime.Format("2006-01-02T15:04:05.000Z07:00"))
		}
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		b.WriteString(uriFor(seg))
		b.WriteString("\n")
	}
	if mp.IsVOD {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return []byte(b.String())
}

// MasterOptions controls subtitle advertisement when rendering the
// republished master playlist.
type MasterOptions struct {
	VariantURI string // the published media playlist path, e.g. "chunklist.m3u8"
	Bandwidth  int
	Subtitles  []SubtitleTrack
}

// RenderMaster serializes the republished master playlist. In dual/single
// subtitle mode it advertises one EXT-X-MEDIA:TYPE=SUBTITLES line per track
// and a SUBTITLES="Subtitle" attribute on the video variant.
func RenderMaster(opts MasterOptions) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:5\n")

	for _, sub := range opts.Subtitles {
		fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID=\"Subtitle\",LANGUAGE=%q,NAME=%q,URI=%q,AUTOSELECT=NO\n",
			sub.Language, sub.Name, sub.URI)
	}

	if len(opts.Subtitles) > 0 {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,SUBTITLES=\"Subtitle\"\n", opts.Bandwidth)
	} else {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d\n", opts.Bandwidth)
	}
	b.WriteString(opts.VariantURI)
	b.WriteString("\n")
	return []byte(b.String())
}
