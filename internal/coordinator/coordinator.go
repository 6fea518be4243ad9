// Package coordinator drives the follower, downloader, transcription
// stage, and post-processing stage per poll cycle, bounds in-flight work
// to the live window, isolates per-segment failures, and publishes results
// to the manifest store and artifact store atomically with respect to HTTP
// readers.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hlscap/retranscoder/internal/artifactstore"
	"github.com/hlscap/retranscoder/internal/captions"
	"github.com/hlscap/retranscoder/internal/config"
	"github.com/hlscap/retranscoder/internal/downloader"
	"github.com/hlscap/retranscoder/internal/follower"
	"github.com/hlscap/retranscoder/internal/hlsplaylist"
	"github.com/hlscap/retranscoder/internal/log"
	"github.com/hlscap/retranscoder/internal/manifeststore"
	"github.com/hlscap/retranscoder/internal/metrics"
	"github.com/hlscap/retranscoder/internal/postprocess"
	"github.com/hlscap/retranscoder/internal/telemetry"
	"github.com/hlscap/retranscoder/internal/transcribe"
)

var tracer = telemetry.Tracer("retranscoder.coordinator")

// Config configures one Coordinator's subtitle-track topology and
// transcription options. The post-processing mode itself lives on the
// wired postprocess.Stage, a tagged variant selected once at startup.
type Config struct {
	BothTracks     bool // dual-track mode: source-language + English tracks
	SourceLanguage string
	Mode           transcribe.Mode // single-track mode selection; ignored when BothTracks
	BeamSize       int
	VADFilter      bool
	InitialPrompt  string
	FilterWords    []string

	// MaxConcurrentSegments caps how many segments are downloaded/
	// transcribed/post-processed at once, independent of window size. 0
	// means the default cap (defaultMaxConcurrentSegments).
	MaxConcurrentSegments int64
}

const defaultMaxConcurrentSegments = 8

// Coordinator drives D -> E -> F -> G -> (A,B,H) once per poll cycle.
type Coordinator struct {
	cfg        Config
	follower   *follower.Follower
	downloader *downloader.Downloader
	transcribe *transcribe.Stage
	post       *postprocess.Stage
	dispatcher *captions.Dispatcher // nil when caption dispatch is disabled

	manifests *manifeststore.Store
	artifacts *artifactstore.Store

	concurrency *semaphore.Weighted

	logger zerolog.Logger
}

// New builds a Coordinator. dispatcher may be nil to disable caption
// dispatch.
func New(
	cfg Config,
	f *follower.Follower,
	dl *downloader.Downloader,
	ts *transcribe.Stage,
	post *postprocess.Stage,
	dispatcher *captions.Dispatcher,
	manifests *manifeststore.Store,
	artifacts *artifactstore.Store,
) *Coordinator {
	limit := cfg.MaxConcurrentSegments
	if limit <= 0 {
		limit = defaultMaxConcurrentSegments
	}
	return &Coordinator{
		cfg:         cfg,
		follower:    f,
		downloader:  dl,
		transcribe:  ts,
		post:        post,
		dispatcher:  dispatcher,
		manifests:   manifests,
		artifacts:   artifacts,
		concurrency: semaphore.NewWeighted(limit),
		logger:      log.WithComponent("coordinator"),
	}
}

// Run loops: poll, evict, download/transcribe/post-process new segments
// concurrently, publish, sleep. It returns only when ctx is cancelled (a
// nil error) since no single cycle's error tears down the pipeline.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		sleepFor, err := c.runCycle(ctx)
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.logger.Warn().Err(err).Str("event", "coordinator.cycle_failed").Msg("poll cycle failed, retrying next tick")
			metrics.PollCycleOutcome.WithLabelValues("fetch_error").Inc()
			sleepFor = time.Duration(hlsplaylist.DefaultTargetDuration) * time.Second
		} else {
			metrics.PollCycleOutcome.WithLabelValues("ok").Inc()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleepFor):
		}
	}
}

// runCycle executes one poll/evict/fan-out/publish cycle and returns the
// follower-reported sleep duration for the next tick.
func (c *Coordinator) runCycle(ctx context.Context) (time.Duration, error) {
	ctx, span := tracer.Start(ctx, "poll_cycle")
	defer span.End()

	res, err := c.follower.Poll(ctx)
	if err != nil {
		return 0, fmt.Errorf("coordinator: poll: %w", err)
	}

	c.evict(res.SegmentSet)

	todo := make([]string, 0)
	for uri := range res.SegmentSet {
		if !c.artifacts.HasTS(uri) {
			todo = append(todo, uri)
		}
	}
	span.SetAttributes(
		attribute.Int("segments.window", len(res.SegmentSet)),
		attribute.Int("segments.todo", len(todo)),
	)

	outcomes := c.processAll(ctx, todo, res.SegmentURLs)
	for _, o := range outcomes {
		c.install(ctx, o)
	}

	c.publish(res)

	return res.SleepFor, nil
}

// evict drops every artifact whose stable URI is no longer in the current
// segment set, so the store never holds artifacts for segments that have
// slid out of the live window.
func (c *Coordinator) evict(segmentSet map[string]bool) {
	for _, uri := range c.artifacts.Keys() {
		if segmentSet[uri] {
			continue
		}
		c.dropSegment(uri)
		metrics.ArtifactsEvicted.Inc()
	}
}

func (c *Coordinator) dropSegment(uri string) {
	c.artifacts.DropTS(uri)
	c.artifacts.DropVTT(hlsplaylist.SidecarURI(uri))
	c.artifacts.DropVTT(hlsplaylist.SidecarURITagged(uri, "orig"))
	c.artifacts.DropVTT(hlsplaylist.SidecarURITagged(uri, "trans"))
}

// segmentOutcome is the tentative per-segment result produced by
// processAll, installed into the stores only after the whole cycle's
// fan-out has resolved.
type segmentOutcome struct {
	uri       string
	artifacts postprocess.Artifacts
	origCues  []transcribe.Cue
	transCues []transcribe.Cue
	ok        bool
}

// processAll runs download -> transcribe -> post-process for each segment
// in todo concurrently, bounded by c.concurrency (independent of window
// size), joining before returning.
func (c *Coordinator) processAll(ctx context.Context, todo []string, urls map[string]string) []segmentOutcome {
	if len(todo) == 0 {
		return nil
	}

	outcomes := make([]segmentOutcome, len(todo))
	g, gctx := errgroup.WithContext(ctx)

	metrics.SegmentsInFlight.Add(float64(len(todo)))
	defer metrics.SegmentsInFlight.Sub(float64(len(todo)))

	for i, uri := range todo {
		i, uri := i, uri
		g.Go(func() error {
			if err := c.concurrency.Acquire(gctx, 1); err != nil {
				return nil // ctx cancelled; leave this outcome zero-value (not ok)
			}
			defer c.concurrency.Release(1)
			outcomes[i] = c.processSegment(gctx, uri, urls[uri])
			return nil
		})
	}
	_ = g.Wait() // per-segment errors are captured in outcomes, never propagated

	return outcomes
}

// processSegment runs one segment's download/transcribe/post-process
// chain. A download failure leaves no artifact (retried next cycle). A
// transcription failure still installs the raw segment as a pass-through
// artifact with no subtitle sidecars, so the segment is never re-submitted
// to the transcription stage while it remains in the window and the
// playlist keeps referencing it, just without a caption track. A
// post-processing (muxer) failure installs nothing, since no artifact was
// produced and re-attempting the whole chain next cycle is the simplest
// safe recovery for that failure class.
func (c *Coordinator) processSegment(ctx context.Context, uri, url string) segmentOutcome {
	l := c.logger

	downloadStart := time.Now()
	path, err := c.downloader.Download(ctx, url, uri)
	if err != nil {
		l.Warn().Err(err).Str("event", "coordinator.download_failed").Str("segment_uri", uri).Msg("segment download failed")
		metrics.SegmentProcessOutcome.WithLabelValues("download", "fail").Inc()
		return segmentOutcome{uri: uri}
	}
	metrics.DownloadDuration.Observe(time.Since(downloadStart).Seconds())
	metrics.SegmentProcessOutcome.WithLabelValues("download", "ok").Inc()

	cleanup := path
	defer func() {
		if cleanup != "" {
			_ = os.Remove(cleanup)
		}
	}()

	opts := transcribe.Options{
		Mode:           c.transcribeMode(),
		SourceLanguage: c.cfg.SourceLanguage,
		BeamSize:       c.cfg.BeamSize,
		VADFilter:      c.cfg.VADFilter,
		InitialPrompt:  c.cfg.InitialPrompt,
		FilterWords:    c.cfg.FilterWords,
	}

	transcribeStart := time.Now()
	result, err := c.transcribe.Transcribe(ctx, path, opts)
	metrics.TranscribeDuration.WithLabelValues(string(opts.Mode)).Observe(time.Since(transcribeStart).Seconds())
	if err != nil {
		l.Warn().Err(err).Str("event", "coordinator.transcribe_failed").Str("segment_uri", uri).Msg("transcription failed, publishing pass-through segment")
		metrics.SegmentProcessOutcome.WithLabelValues("transcribe", "fail").Inc()
		cleanup = "" // ownership transfers to the artifact store as a pass-through artifact
		return segmentOutcome{uri: uri, ok: true, artifacts: postprocess.Artifacts{TSPath: path}}
	}
	metrics.SegmentProcessOutcome.WithLabelValues("transcribe", "ok").Inc()

	artifacts, err := c.post.Process(ctx, path, result)
	if err != nil {
		l.Warn().Err(err).Str("event", "coordinator.postprocess_failed").Str("segment_uri", uri).Msg("post-processing failed, skipping segment this cycle")
		metrics.SegmentProcessOutcome.WithLabelValues("postprocess", "fail").Inc()
		return segmentOutcome{uri: uri}
	}
	metrics.SegmentProcessOutcome.WithLabelValues("postprocess", "ok").Inc()

	if artifacts.TSPath == path {
		cleanup = "" // sidecar mode: the downloaded file itself becomes the artifact
	}

	return segmentOutcome{
		uri:       uri,
		artifacts: artifacts,
		origCues:  result.OrigCues,
		transCues: result.TransCues,
		ok:        true,
	}
}

func (c *Coordinator) transcribeMode() transcribe.Mode {
	if c.cfg.BothTracks {
		return transcribe.ModeBoth
	}
	if c.cfg.Mode != "" {
		return c.cfg.Mode
	}
	return transcribe.ModeTranslate
}

// install registers a successfully-processed segment's artifacts into the
// Artifact Store and fires the caption dispatcher. Failed outcomes are
// skipped (nothing to install).
func (c *Coordinator) install(ctx context.Context, o segmentOutcome) {
	if !o.ok {
		return
	}
	c.artifacts.PutTS(o.uri, o.artifacts.TSPath)
	for tag, blob := range o.artifacts.Sidecars {
		c.artifacts.PutVTT(c.sidecarKey(o.uri, tag), blob)
	}

	if c.dispatcher == nil {
		return
	}
	cues, lang, trackID := c.dispatchSelection(o)
	if len(cues) > 0 {
		c.dispatcher.Dispatch(ctx, cues, lang, trackID)
	}
}

// dispatchSelection mirrors postprocess's burn-track preference: the
// translated track is dispatched when present (the scenario the external
// captioning endpoint cares about is usually the viewer-facing English
// track), falling back to the original-language track otherwise.
func (c *Coordinator) dispatchSelection(o segmentOutcome) (cues []transcribe.Cue, lang string, trackID int) {
	if len(o.transCues) > 0 {
		return o.transCues, "en", 1
	}
	return o.origCues, c.cfg.SourceLanguage, 0
}

// sidecarKey picks the sidecar URI for a rendered VTT blob: tagged
// ("orig"/"trans") in dual-track mode, untagged in single-track mode.
func (c *Coordinator) sidecarKey(uri, tag string) string {
	if c.cfg.BothTracks {
		return hlsplaylist.SidecarURITagged(uri, tag)
	}
	return hlsplaylist.SidecarURI(uri)
}

// publish rewrites and installs the media and subtitle playlists, filtered
// to the segments currently holding a transport-stream artifact so the
// playlist never references an artifact that isn't installed yet. The
// master playlist is published once by PublishMaster and is not rewritten
// here; it only changes if the upstream master is re-fetched, which this
// implementation does at most once at startup.
func (c *Coordinator) publish(res follower.Result) {
	live := res.Playlist.Clone()
	live.Segments = filterSegments(live.Segments, func(seg hlsplaylist.Segment) bool {
		return c.artifacts.HasTS(hlsplaylist.StableURI(seg.URI))
	})

	mediaBytes := hlsplaylist.RenderMedia(live, func(seg hlsplaylist.Segment) string {
		return hlsplaylist.PublishedURI(hlsplaylist.StableURI(seg.URI))
	})
	c.manifests.Put(manifeststore.SlotMedia, mediaBytes)

	// Hard-burn and embedded modes carry their subtitles inside the
	// rewritten segments; only sidecar mode publishes subtitle playlists.
	if c.post.Mode != config.ModeSidecar {
		return
	}

	if c.cfg.BothTracks {
		transBytes := hlsplaylist.RenderMedia(live, func(seg hlsplaylist.Segment) string {
			return hlsplaylist.PublishedURI(hlsplaylist.SidecarURITagged(hlsplaylist.StableURI(seg.URI), "trans"))
		})
		c.manifests.Put(manifeststore.SubsSlot("trans"), transBytes)

		origBytes := hlsplaylist.RenderMedia(live, func(seg hlsplaylist.Segment) string {
			return hlsplaylist.PublishedURI(hlsplaylist.SidecarURITagged(hlsplaylist.StableURI(seg.URI), "orig"))
		})
		c.manifests.Put(manifeststore.SubsSlot("orig"), origBytes)
		return
	}

	singleBytes := hlsplaylist.RenderMedia(live, func(seg hlsplaylist.Segment) string {
		return hlsplaylist.PublishedURI(hlsplaylist.SidecarURI(hlsplaylist.StableURI(seg.URI)))
	})
	c.manifests.Put(manifeststore.SubsSlot("single"), singleBytes)
}

// PublishMaster builds and installs the master playlist once; it is
// mutated only if the upstream master is re-fetched. bandwidth is the
// selected variant's bandwidth (0 if upstream has no master playlist).
func (c *Coordinator) PublishMaster(bandwidth int) {
	opts := hlsplaylist.MasterOptions{
		VariantURI: "chunklist.m3u8",
		Bandwidth:  bandwidth,
		Subtitles:  c.subtitleTracks(),
	}
	c.manifests.Put(manifeststore.SlotMaster, hlsplaylist.RenderMaster(opts))
}

func (c *Coordinator) subtitleTracks() []hlsplaylist.SubtitleTrack {
	if c.post.Mode != config.ModeSidecar {
		return nil
	}
	if c.cfg.BothTracks {
		return []hlsplaylist.SubtitleTrack{
			{Language: "en", Name: "English", URI: "subs_en.m3u8"},
			{Language: c.cfg.SourceLanguage, Name: languageDisplayName(c.cfg.SourceLanguage), URI: "subs_" + c.cfg.SourceLanguage + ".m3u8"},
		}
	}

	lang := c.cfg.SourceLanguage
	if c.transcribeMode() == transcribe.ModeTranslate {
		lang = "en"
	}
	return []hlsplaylist.SubtitleTrack{
		{Language: lang, Name: languageDisplayName(lang), URI: "subs.m3u8"},
	}
}

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"auto": "Auto",
}

func languageDisplayName(tag string) string {
	if name, ok := languageNames[tag]; ok {
		return name
	}
	return strings.ToUpper(tag)
}

func filterSegments(segs []hlsplaylist.Segment, keep func(hlsplaylist.Segment) bool) []hlsplaylist.Segment {
	out := make([]hlsplaylist.Segment, 0, len(segs))
	for _, s := range segs {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
