// Package hlsplaylist parses upstream HLS playlists and renders the
// playlists this pipeline republishes.
package hlsplaylist

import "time"

// Segment describes one media segment entry in a media playlist.
type Segment struct {
	URI             string
	Duration        float64
	ProgramDateTime *time.Time
}

// MediaPlaylist is a parsed (or to-be-rendered) media playlist.
type MediaPlaylist struct {
	TargetDuration float64
	MediaSequence  int
	Segments       []Segment
	IsVOD          bool
}

// Variant is one entry of a master playlist's variant stream list.
type Variant struct {
	Bandwidth int
	URI       string
}

// MasterPlaylist is a parsed master (multivariant) playlist.
type MasterPlaylist struct {
	Variants []Variant
}

// SubtitleTrack describes one subtitle rendition advertised on the master
// playlist.
type SubtitleTrack struct {
	Language string // e.g. "en", "ru"
	Name     string // display name
	URI      string // relative URI, e.g. "subs_en.m3u8"
}

// Clone returns a deep copy of the media playlist, safe for independent
// mutation (used to derive subtitle playlists from the media playlist).
func (mp *MediaPlaylist) Clone() *MediaPlaylist {
	out := &MediaPlaylist{
		TargetDuration: mp.TargetDuration,
		MediaSequence:  mp.MediaSequence,
		IsVOD:          mp.IsVOD,
		Segments:       make([]Segment, len(mp.Segments)),
	}
	for i, s := range mp.Segments {
		seg := s
		if s.ProgramDateTime != nil {
			t := *s.ProgramDateTime
			seg.ProgramDateTime = &t
		}
		out.Segments[i] = seg
	}
	return out
}
