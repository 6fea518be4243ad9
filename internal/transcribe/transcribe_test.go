package transcribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCollaborator struct {
	calls []CollaboratorOptions
	cues  map[string][]Cue // task -> cues
	err   error
}

func (f *fakeCollaborator) Transcribe(ctx context.Context, audioPath string, opts CollaboratorOptions) ([]Cue, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.cues[opts.Task], nil
}

type fakeProber struct {
	startTime float64
	err       error
}

func (f *fakeProber) AudioStartTime(ctx context.Context, path string) (float64, error) {
	return f.startTime, f.err
}

func TestTranscribeModeTranscribeOnly(t *testing.T) {
	collab := &fakeCollaborator{cues: map[string][]Cue{
		"transcribe": {{Start: 0, End: 0.5, Text: "hello"}},
	}}
	stage := New(collab, &fakeProber{startTime: 100})

	result, err := stage.Transcribe(context.Background(), "seg1.ts", Options{Mode: ModeTranscribe})
	require.NoError(t, err)
	require.Len(t, result.OrigCues, 1)
	require.Empty(t, result.TransCues)
	require.Equal(t, 100.0, result.OrigCues[0].Start)
	require.Equal(t, 100.5, result.OrigCues[0].End)
	require.Len(t, collab.calls, 1)
	require.Equal(t, "transcribe", collab.calls[0].Task)
}

func TestTranscribeModeBothCallsTwice(t *testing.T) {
	collab := &fakeCollaborator{cues: map[string][]Cue{
		"transcribe": {{Start: 0, End: 1, Text: "привет"}},
		"translate":  {{Start: 0, End: 1, Text: "hello"}},
	}}
	stage := New(collab, &fakeProber{startTime: 0})

	result, err := stage.Transcribe(context.Background(), "seg1.ts", Options{Mode: ModeBoth})
	require.NoError(t, err)
	require.Len(t, result.OrigCues, 1)
	require.Len(t, result.TransCues, 1)
	require.Len(t, collab.calls, 2)
}

func TestTranscribeFilterDropsCue(t *testing.T) {
	collab := &fakeCollaborator{cues: map[string][]Cue{
		"transcribe": {
			{Text: "news at eleven"},
			{Text: "paid advertisement here"},
		},
	}}
	stage := New(collab, &fakeProber{startTime: 0})

	result, err := stage.Transcribe(context.Background(), "seg1.ts", Options{
		Mode:        ModeTranscribe,
		FilterWords: []string{"advertisement"},
	})
	require.NoError(t, err)
	require.Len(t, result.OrigCues, 1)
	require.Equal(t, "news at eleven", result.OrigCues[0].Text)
}

func TestTranscribePropagatesProbeError(t *testing.T) {
	collab := &fakeCollaborator{}
	stage := New(collab, &fakeProber{err: assertErr{}})

	_, err := stage.Transcribe(context.Background(), "seg1.ts", Options{Mode: ModeTranscribe})
	require.Error(t, err)
	require.Empty(t, collab.calls)
}

func TestTranscribePropagatesCollaboratorError(t *testing.T) {
	collab := &fakeCollaborator{err: assertErr{}}
	stage := New(collab, &fakeProber{startTime: 0})

	_, err := stage.Transcribe(context.Background(), "seg1.ts", Options{Mode: ModeTranscribe})
	require.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestFilterCuesCaseInsensitive(t *testing.T) {
	cues := []Cue{{Text: "This is an AD for something"}, {Text: "clean text"}}
	out := FilterCues(cues, []string{"ad "})
	require.Len(t, out, 1)
	require.Equal(t, "clean text", out[0].Text)
}

func TestFilterCuesNoFilterWordsNoOp(t *testing.T) {
	cues := []Cue{{Text: "anything"}}
	out := FilterCues(cues, nil)
	require.Equal(t, cues, out)
}

func TestBuildInitialPrompt(t *testing.T) {
	require.Equal(t, "", BuildInitialPrompt(nil))
	got := BuildInitialPrompt([]string{"foo", "bar"})
	require.Equal(t, `The following terms may appear in this audio: "foo", "bar".`, got)
}
