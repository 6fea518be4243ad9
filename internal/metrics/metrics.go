// Package metrics exposes Prometheus instrumentation for the pipeline:
// counters and histograms registered at package init, exported via
// promhttp elsewhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCycleDuration tracks wall-clock time for one follower poll cycle.
	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retranscoder_poll_cycle_duration_seconds",
		Help:    "Duration of one upstream-poll/transcode/publish cycle",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	})

	// PollCycleOutcome counts poll cycles by terminal outcome.
	PollCycleOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retranscoder_poll_cycle_total",
		Help: "Poll cycles by outcome (ok, fetch_error)",
	}, []string{"outcome"})

	// SegmentsInFlight tracks segments currently being downloaded/transcoded.
	SegmentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retranscoder_segments_in_flight",
		Help: "Segments currently being processed by the pipeline",
	})

	// SegmentProcessOutcome counts per-segment pipeline outcomes.
	SegmentProcessOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retranscoder_segment_process_total",
		Help: "Per-segment pipeline outcomes by stage and result",
	}, []string{"stage", "result"})

	// DownloadDuration tracks segment download latency.
	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retranscoder_download_duration_seconds",
		Help:    "Segment download latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// TranscribeDuration tracks collaborator transcription latency by mode.
	TranscribeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retranscoder_transcribe_duration_seconds",
		Help:    "Speech-to-text collaborator latency",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"mode"})

	// CuesFiltered counts cues dropped by the word-blocklist filter.
	CuesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retranscoder_cues_filtered_total",
		Help: "Cues dropped by the word-blocklist filter",
	})

	// MuxerExitTotal counts muxer child-process exits by mode and reason.
	MuxerExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retranscoder_muxer_exit_total",
		Help: "Muxer process exits by output mode and reason (ok, stall, cancelled, error)",
	}, []string{"mode", "reason"})

	// MuxerStallTotal counts watchdog-detected stalls.
	MuxerStallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retranscoder_muxer_stall_total",
		Help: "Muxer invocations killed by the progress watchdog, by output mode",
	}, []string{"mode"})

	// CaptionDispatchTotal counts external caption POST attempts by outcome.
	CaptionDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retranscoder_caption_dispatch_total",
		Help: "External caption dispatch attempts by outcome",
	}, []string{"outcome"})

	// ArtifactsEvicted counts segment artifacts evicted from the window.
	ArtifactsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retranscoder_artifacts_evicted_total",
		Help: "Segment artifacts (.ts/.vtt) evicted as they slide out of the buffer window",
	})
)
