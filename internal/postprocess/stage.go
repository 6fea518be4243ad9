package postprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hlscap/retranscoder/internal/config"
	"github.com/hlscap/retranscoder/internal/transcribe"
)

// Artifacts is what the Post-processing Stage hands back to the coordinator
// for installation into the Artifact Store: the segment file to publish
// (unchanged for sidecar mode, re-muxed for hard-burn/embedded) plus any
// sidecar subtitle blobs keyed by tag ("orig", "trans").
type Artifacts struct {
	TSPath   string
	Sidecars map[string][]byte
}

// Stage implements tagged-variant output selection: exactly one of sidecar,
// hard-burn, or embedded mode is active per process lifetime.
type Stage struct {
	Mode       config.PostProcessMode
	Muxer      *Muxer
	ScratchDir string
	SourceLang string // language tag of the original track, for embedded stream metadata
}

// NewStage returns a Stage bound to mode, using muxer for any mode that
// requires re-muxing the segment.
func NewStage(mode config.PostProcessMode, muxer *Muxer, scratchDir string) *Stage {
	return &Stage{Mode: mode, Muxer: muxer, ScratchDir: scratchDir}
}

// WithSourceLanguage sets the language tag used for the original track's
// in-band stream metadata in embedded mode.
func (s *Stage) WithSourceLanguage(tag string) *Stage {
	s.SourceLang = tag
	return s
}

// Process renders transcribed cues and, for hard-burn/embedded modes,
// re-muxes segmentPath into a new scratch file carrying the subtitles.
func (s *Stage) Process(ctx context.Context, segmentPath string, result transcribe.Result) (Artifacts, error) {
	switch s.Mode {
	case config.ModeSidecar:
		return s.processSidecar(segmentPath, result), nil
	case config.ModeHardSubs:
		return s.processHardSubs(ctx, segmentPath, result)
	case config.ModeEmbedded:
		return s.processEmbedded(ctx, segmentPath, result)
	default:
		return Artifacts{}, fmt.Errorf("postprocess: unknown mode %q", s.Mode)
	}
}

func (s *Stage) processSidecar(segmentPath string, result transcribe.Result) Artifacts {
	sidecars := make(map[string][]byte)
	if len(result.OrigCues) > 0 {
		sidecars["orig"] = RenderWebVTT(result.OrigCues)
	}
	if len(result.TransCues) > 0 {
		sidecars["trans"] = RenderWebVTT(result.TransCues)
	}
	return Artifacts{TSPath: segmentPath, Sidecars: sidecars}
}

// burnCues picks the cue track to burn/embed: translated takes priority
// when both tracks are present, since a viewer watching hard-burned or
// embedded subtitles cannot choose a track the way a sidecar-based player
// can.
func burnCues(result transcribe.Result) []transcribe.Cue {
	if len(result.TransCues) > 0 {
		return result.TransCues
	}
	return result.OrigCues
}

func (s *Stage) writeSRT(cues []transcribe.Cue, name string) (string, error) {
	path := filepath.Join(s.ScratchDir, name)
	if err := os.WriteFile(path, RenderSRT(cues), 0o644); err != nil {
		return "", fmt.Errorf("postprocess: write scratch srt: %w", err)
	}
	return path, nil
}

func (s *Stage) processHardSubs(ctx context.Context, segmentPath string, result transcribe.Result) (Artifacts, error) {
	cues := burnCues(result)
	srtPath, err := s.writeSRT(cues, filepath.Base(segmentPath)+".burn.srt")
	if err != nil {
		return Artifacts{}, err
	}
	defer os.Remove(srtPath)

	outPath := filepath.Join(s.ScratchDir, filepath.Base(segmentPath)+".burned.ts")
	args := buildHardSubsArgs(segmentPath, srtPath, outPath)
	if err := s.Muxer.Run(ctx, "hard_subs", args); err != nil {
		return Artifacts{}, err
	}
	return Artifacts{TSPath: outPath}, nil
}

// buildHardSubsArgs constructs the ffmpeg argument list to burn an SRT
// into the video stream via the subtitles filter, keeping audio untouched.
// -copyts plus zero mux preload/delay keep the emitted segment on the same
// PTS clock as the rest of the HLS window.
func buildHardSubsArgs(inputPath, srtPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-copyts",
		"-muxpreload", "0",
		"-muxdelay", "0",
		"-preset", "ultrafast",
		"-c:a", "copy",
		"-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(srtPath)),
		outputPath,
	}
}

func (s *Stage) processEmbedded(ctx context.Context, segmentPath string, result transcribe.Result) (Artifacts, error) {
	var tracks []embeddedTrack
	if len(result.OrigCues) > 0 {
		p, err := s.writeSRT(result.OrigCues, filepath.Base(segmentPath)+".orig.srt")
		if err != nil {
			return Artifacts{}, err
		}
		defer os.Remove(p)
		tracks = append(tracks, embeddedTrack{
			SRTPath:  p,
			Language: iso6393(s.SourceLang),
			Title:    fmt.Sprintf("Original (%s)", strings.ToUpper(s.SourceLang)),
		})
	}
	if len(result.TransCues) > 0 {
		p, err := s.writeSRT(result.TransCues, filepath.Base(segmentPath)+".trans.srt")
		if err != nil {
			return Artifacts{}, err
		}
		defer os.Remove(p)
		tracks = append(tracks, embeddedTrack{SRTPath: p, Language: "eng", Title: "English"})
	}

	outPath := filepath.Join(s.ScratchDir, filepath.Base(segmentPath)+".embedded.ts")
	args := buildEmbeddedArgs(segmentPath, tracks, outPath)
	if err := s.Muxer.Run(ctx, "embedded", args); err != nil {
		return Artifacts{}, err
	}
	return Artifacts{TSPath: outPath}, nil
}

type embeddedTrack struct {
	SRTPath  string
	Language string // iso639-3 tag for the stream's language metadata
	Title    string // display name for the stream's title metadata
}

// buildEmbeddedArgs constructs the ffmpeg argument list to mux one or more
// SRT tracks into the output as in-band CEA-608 subtitle streams, preserving
// the original video/audio streams via stream copy. -copyts plus zero mux
// preload/delay keep the emitted segment on the same PTS clock as the rest
// of the HLS window.
func buildEmbeddedArgs(inputPath string, tracks []embeddedTrack, outputPath string) []string {
	args := []string{"-y", "-i", inputPath}
	for _, t := range tracks {
		args = append(args, "-f", "srt", "-i", t.SRTPath)
	}
	args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	for i := range tracks {
		args = append(args, "-map", fmt.Sprintf("%d:0", i+1))
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy", "-c:s", "cea_608")
	for i, t := range tracks {
		streamSpec := fmt.Sprintf("-metadata:s:s:%d", i)
		args = append(args, streamSpec, "language="+t.Language)
		args = append(args, streamSpec, "title="+t.Title)
	}
	args = append(args,
		"-f", "mpegts",
		"-copyts",
		"-muxpreload", "0",
		"-muxdelay", "0",
		outputPath,
	)
	return args
}

var iso6393Tags = map[string]string{
	"en": "eng",
	"ru": "rus",
	"es": "spa",
	"fr": "fra",
	"de": "deu",
	"uk": "ukr",
	"pt": "por",
	"it": "ita",
}

// iso6393 maps a two-letter language tag to its iso639-3 form for
// transport-stream metadata. A tag that is already three letters passes
// through unchanged; any other unknown tag, and "auto", maps to "und".
func iso6393(tag string) string {
	if t, ok := iso6393Tags[tag]; ok {
		return t
	}
	if len(tag) == 3 {
		return tag
	}
	return "und"
}

// escapeFilterPath escapes characters ffmpeg's filtergraph parser treats
// specially when a path is used inside a filter option value.
func escapeFilterPath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), ":", `\:`)
}
