package hlsplaylist

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func segs(n int) []Segment {
	out := make([]Segment, n)
	for i := range out {
		out[i] = Segment{URI: "seg.ts", Duration: 6}
	}
	return out
}

func TestTrimNoOpWhenUnderCap(t *testing.T) {
	mp := &MediaPlaylist{TargetDuration: 6, MediaSequence: 0, Segments: segs(5)}
	out := Trim(mp, 60, 120)
	if len(out.Segments) != 5 {
		t.Fatalf("expected no trim, got %d segments", len(out.Segments))
	}
	if out.MediaSequence != 0 {
		t.Fatalf("expected sequence unchanged, got %d", out.MediaSequence)
	}
}

func TestTrimEnforcesWindow(t *testing.T) {
	// target_duration=6: max=120/6=20, target=60/6=10.
	mp := &MediaPlaylist{TargetDuration: 6, MediaSequence: 100, Segments: segs(25)}
	out := Trim(mp, 60, 120)
	if len(out.Segments) != 10 {
		t.Fatalf("expected 10 segments kept, got %d", len(out.Segments))
	}
	if out.MediaSequence != 100+15 {
		t.Fatalf("expected media sequence advanced by 15, got %d", out.MediaSequence)
	}
}

func TestTrimAdvancesPDT(t *testing.T) {
	segments := segs(25)
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	for i := range segments {
		t := base.Add(time.Duration(i) * 6 * time.Second)
		segments[i].ProgramDateTime = &t
	}
	mp := &MediaPlaylist{TargetDuration: 6, MediaSequence: 0, Segments: segments}
	out := Trim(mp, 60, 120)
	if len(out.Segments) != 10 {
		t.Fatalf("expected 10 segments remaining, got %d", len(out.Segments))
	}
	if out.Segments[0].URI != segments[15].URI {
		t.Fatalf("expected first retained segment to be original index 15")
	}
	want := base.Add(15 * 6 * time.Second)
	if out.Segments[0].ProgramDateTime == nil || !out.Segments[0].ProgramDateTime.Equal(want) {
		t.Fatalf("expected first retained segment's PDT to be %v, got %v", want, out.Segments[0].ProgramDateTime)
	}
}

func TestTrimFallbackDuration(t *testing.T) {
	mp := &MediaPlaylist{TargetDuration: 0, MediaSequence: 0, Segments: segs(13)}
	out := Trim(mp, 60, 120)
	// fallback duration 10s: max=12, keep=6
	if len(out.Segments) != 6 {
		t.Fatalf("expected fallback trim to 6 segments, got %d", len(out.Segments))
	}
}

func TestTrimDoesNotMutateInputSlice(t *testing.T) {
	original := segs(25)
	originalCopy := make([]Segment, len(original))
	copy(originalCopy, original)

	mp := &MediaPlaylist{TargetDuration: 6, MediaSequence: 0, Segments: original}
	Trim(mp, 60, 120)

	if diff := cmp.Diff(originalCopy, original); diff != "" {
		t.Fatalf("Trim mutated its input segment slice (-want +got):\n%s", diff)
	}
}
