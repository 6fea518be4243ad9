// Package transcribe probes a segment's audio start time, invokes the
// external speech-to-text collaborator once per requested mode, and
// filters cues by a process-wide word blocklist.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/hlscap/retranscoder/internal/metrics"
)

// Cue is a timestamped text fragment, offsets in seconds relative to the
// segment's audio start time.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Mode selects which cue tracks are produced for a segment.
type Mode string

const (
	ModeTranscribe Mode = "transcribe" // source-language cues only
	ModeTranslate  Mode = "translate"  // English-translated cues only
	ModeBoth       Mode = "both"       // both tracks
)

// Options configures one Transcribe call.
type Options struct {
	Mode           Mode
	SourceLanguage string // language tag, or "auto"
	BeamSize       int
	VADFilter      bool
	InitialPrompt  string
	FilterWords    []string
}

// CollaboratorOptions is the contract passed to the external speech-to-text
// collaborator, one call per requested task.
type CollaboratorOptions struct {
	Task          string // "transcribe" | "translate"
	Language      string
	BeamSize      int
	VADFilter     bool
	InitialPrompt string
}

// Collaborator is the external speech-to-text engine abstraction. Any
// implementation honoring this contract is acceptable (local engine, remote
// HTTP, serverless).
type Collaborator interface {
	Transcribe(ctx context.Context, audioPath string, opts CollaboratorOptions) ([]Cue, error)
}

// Prober reports a segment's audio stream start time, in seconds, so cue
// offsets can be aligned to the player's PTS clock.
type Prober interface {
	AudioStartTime(ctx context.Context, path string) (float64, error)
}

// Stage drives the Transcription Stage for one segment at a time.
type Stage struct {
	collaborator Collaborator
	prober       Prober
}

// New returns a Stage wired to the given collaborator and prober.
func New(collaborator Collaborator, prober Prober) *Stage {
	return &Stage{collaborator: collaborator, prober: prober}
}

// Result holds the stage's output for one segment.
type Result struct {
	OrigCues  []Cue // present when mode is transcribe or both
	TransCues []Cue // present when mode is translate or both
}

// Transcribe probes the segment's audio start time, invokes the
// collaborator once per mode, offsets every cue by the probed start time,
// and filters cues whose lower-cased text contains a lower-cased filter
// word as a substring. A collaborator or probe error is returned wrapped;
// callers (the coordinator) are expected to skip the segment on error
// without retrying it within the same window.
func (s *Stage) Transcribe(ctx context.Context, segmentPath string, opts Options) (Result, error) {
	startTime, err := s.prober.AudioStartTime(ctx, segmentPath)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: probe start time: %w", err)
	}

	var result Result

	if opts.Mode == ModeTranscribe || opts.Mode == ModeBoth {
		cues, err := s.run(ctx, segmentPath, "transcribe", opts, startTime)
		if err != nil {
			return Result{}, err
		}
		result.OrigCues = FilterCues(cues, opts.FilterWords)
	}

	if opts.Mode == ModeTranslate || opts.Mode == ModeBoth {
		cues, err := s.run(ctx, segmentPath, "translate", opts, startTime)
		if err != nil {
			return Result{}, err
		}
		result.TransCues = FilterCues(cues, opts.FilterWords)
	}

	return result, nil
}

func (s *Stage) run(ctx context.Context, segmentPath, task string, opts Options, startTime float64) ([]Cue, error) {
	cues, err := s.collaborator.Transcribe(ctx, segmentPath, CollaboratorOptions{
		Task:          task,
		Language:      opts.SourceLanguage,
		BeamSize:      opts.BeamSize,
		VADFilter:     opts.VADFilter,
		InitialPrompt: opts.InitialPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s collaborator call: %w", task, err)
	}
	out := make([]Cue, len(cues))
	for i, c := range cues {
		out[i] = Cue{Start: c.Start + startTime, End: c.End + startTime, Text: c.Text}
	}
	return out, nil
}

// FilterCues drops any cue whose lower-cased text contains a lower-cased
// filter word as a substring.
func FilterCues(cues []Cue, filterWords []string) []Cue {
	if len(filterWords) == 0 {
		return cues
	}
	lowered := make([]string, len(filterWords))
	for i, w := range filterWords {
		lowered[i] = strings.ToLower(w)
	}

	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		if shouldFilter(c.Text, lowered) {
			metrics.CuesFiltered.Inc()
			continue
		}
		out = append(out, c)
	}
	return out
}

func shouldFilter(text string, lowerFilterWords []string) bool {
	lower := strings.ToLower(text)
	for _, w := range lowerFilterWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
