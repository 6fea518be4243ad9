package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hlscap/retranscoder/internal/config"
	"github.com/hlscap/retranscoder/internal/transcribe"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func sampleResult() transcribe.Result {
	return transcribe.Result{
		OrigCues:  []transcribe.Cue{{Start: 0, End: 1, Text: "hola"}},
		TransCues: []transcribe.Cue{{Start: 0, End: 1, Text: "hello"}},
	}
}

func TestStageSidecarProducesBothVTTsUnchangedSegment(t *testing.T) {
	s := NewStage(config.ModeSidecar, nil, t.TempDir())
	out, err := s.Process(context.Background(), "/scratch/seg1.ts", sampleResult())
	require.NoError(t, err)
	require.Equal(t, "/scratch/seg1.ts", out.TSPath)
	require.Contains(t, string(out.Sidecars["orig"]), "hola")
	require.Contains(t, string(out.Sidecars["trans"]), "hello")
}

func TestStageSidecarOmitsEmptyTracks(t *testing.T) {
	s := NewStage(config.ModeSidecar, nil, t.TempDir())
	out, err := s.Process(context.Background(), "/scratch/seg1.ts", transcribe.Result{
		OrigCues: []transcribe.Cue{{Start: 0, End: 1, Text: "only orig"}},
	})
	require.NoError(t, err)
	require.Contains(t, out.Sidecars, "orig")
	require.NotContains(t, out.Sidecars, "trans")
}

func TestBurnCuesPrefersTranslated(t *testing.T) {
	cues := burnCues(sampleResult())
	require.Equal(t, "hello", cues[0].Text)
}

func TestBurnCuesFallsBackToOriginal(t *testing.T) {
	cues := burnCues(transcribe.Result{OrigCues: []transcribe.Cue{{Text: "only orig"}}})
	require.Equal(t, "only orig", cues[0].Text)
}

func TestBuildHardSubsArgsEscapesColon(t *testing.T) {
	args := buildHardSubsArgs("in.ts", `C:/scratch/seg.srt`, "out.ts")
	require.Contains(t, args, "-vf")
	found := false
	for _, a := range args {
		if a == `subtitles=C\:/scratch/seg.srt` {
			found = true
		}
	}
	require.True(t, found)
}

func TestBuildEmbeddedArgsMapsEachTrack(t *testing.T) {
	args := buildEmbeddedArgs("in.ts", []embeddedTrack{
		{SRTPath: "orig.srt", Language: "rus", Title: "Original (RU)"},
		{SRTPath: "trans.srt", Language: "eng", Title: "English"},
	}, "out.ts")
	require.Contains(t, args, "orig.srt")
	require.Contains(t, args, "trans.srt")
	require.Contains(t, args, "cea_608")
	require.Contains(t, args, "language=rus")
	require.Contains(t, args, "language=eng")
	require.Contains(t, args, "title=English")
	require.Contains(t, args, "-copyts")
	require.Contains(t, args, "-muxdelay")
}

func TestBuildHardSubsArgsPreservesTimestamps(t *testing.T) {
	args := buildHardSubsArgs("in.ts", "seg.srt", "out.ts")
	require.Contains(t, args, "-copyts")
	require.Contains(t, args, "-muxpreload")
	require.Contains(t, args, "-muxdelay")
}

func TestISO6393Mapping(t *testing.T) {
	require.Equal(t, "rus", iso6393("ru"))
	require.Equal(t, "eng", iso6393("en"))
	require.Equal(t, "fin", iso6393("fin"))
	require.Equal(t, "und", iso6393("auto"))
	require.Equal(t, "und", iso6393(""))
}

func TestStageHardSubsInvokesMuxerAndReturnsRemuxedPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fakeffmpeg.sh")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho progress=end\nexit 0\n"), 0o755))

	muxer := NewMuxer(bin, zerolog.Nop())
	s := NewStage(config.ModeHardSubs, muxer, dir)

	segPath := filepath.Join(dir, "seg1.ts")
	require.NoError(t, os.WriteFile(segPath, []byte("fake-ts"), 0o644))

	out, err := s.Process(context.Background(), segPath, sampleResult())
	require.NoError(t, err)
	require.Contains(t, out.TSPath, "burned.ts")
}

func TestStageUnknownModeErrors(t *testing.T) {
	s := NewStage(config.PostProcessMode("bogus"), nil, t.TempDir())
	_, err := s.Process(context.Background(), "seg.ts", sampleResult())
	require.Error(t, err)
}
