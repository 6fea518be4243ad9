// Package lifecycle implements process-wide startup and shutdown: verifying
// external binaries, loading filter/vocabulary configuration, creating the
// scratch directory, binding the HTTP server, fetching the upstream master
// once, and draining in-flight work on shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/time/rate"

	"github.com/hlscap/retranscoder/internal/artifactstore"
	"github.com/hlscap/retranscoder/internal/captions"
	"github.com/hlscap/retranscoder/internal/config"
	"github.com/hlscap/retranscoder/internal/coordinator"
	"github.com/hlscap/retranscoder/internal/downloader"
	"github.com/hlscap/retranscoder/internal/follower"
	"github.com/hlscap/retranscoder/internal/httpserver"
	"github.com/hlscap/retranscoder/internal/log"
	"github.com/hlscap/retranscoder/internal/manifeststore"
	"github.com/hlscap/retranscoder/internal/postprocess"
	"github.com/hlscap/retranscoder/internal/telemetry"
	"github.com/hlscap/retranscoder/internal/transcribe"
)

// FatalError distinguishes startup failures that should abort the process
// (missing binaries, bind failure) from the per-segment/per-cycle failures
// that the coordinator isolates and retries.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// Collaborator aliases transcribe.Collaborator, the speech-to-text engine
// type that New accepts.
type Collaborator = transcribe.Collaborator

// App owns every long-lived resource created at startup: the stores, the
// HTTP server, the scratch directory, and the coordinator loop.
type App struct {
	cfg        *config.FileConfig
	manifests  *manifeststore.Store
	artifacts  *artifactstore.Store
	httpServer *httpserver.Server
	coord      *coordinator.Coordinator
	tracer     *telemetry.Provider
	scratchDir string
	ownsDir    bool
}

// New performs every startup step except binding/serving HTTP and running
// the coordinator loop, which Run does: verify external binaries, load
// filter/vocabulary config, create the scratch directory, resolve the
// upstream master, and wire every component together.
func New(ctx context.Context, cfg *config.FileConfig, collaborator Collaborator, version string) (*App, error) {
	tracer := telemetry.NewProvider("retranscoder", version)

	if err := checkBinaryPresent(cfg.MuxerBinary); err != nil {
		return nil, err
	}
	if err := checkBinaryPresent(cfg.ProbeBinary); err != nil {
		return nil, err
	}

	filterWords, err := transcribe.LoadFilterWords(cfg.Transcription.FilterFile)
	if err != nil {
		return nil, fatalf("lifecycle: load filter words: %w", err)
	}
	vocabulary, err := transcribe.LoadVocabulary(cfg.Transcription.VocabularyFile)
	if err != nil {
		return nil, fatalf("lifecycle: load vocabulary: %w", err)
	}
	initialPrompt := transcribe.BuildInitialPrompt(vocabulary[cfg.Transcription.SourceLanguage])

	scratchDir, err := os.MkdirTemp(cfg.ScratchDir, "retranscoder-*")
	if err != nil {
		return nil, fatalf("lifecycle: create scratch directory: %w", err)
	}

	manifests := manifeststore.New()
	artifacts := artifactstore.New()

	f := follower.New(follower.Config{
		UpstreamURL:         cfg.UpstreamURL,
		UserAgent:           cfg.UserAgent,
		TargetBufferSecs:    cfg.Buffer.TargetBufferSecs,
		MaxTargetBufferSecs: cfg.Buffer.MaxTargetBufferSecs,
	})
	dl := downloader.New(scratchDir, cfg.UserAgent, 20*time.Second)
	if cfg.Buffer.DownloadRatePerSec > 0 {
		burst := cfg.Buffer.DownloadBurst
		if burst <= 0 {
			burst = 1
		}
		dl = dl.WithRateLimit(rate.Limit(cfg.Buffer.DownloadRatePerSec), burst)
	}
	prober := transcribe.NewFFProbeProber(cfg.ProbeBinary)
	stage := transcribe.New(collaborator, prober)
	muxer := postprocess.NewMuxer(cfg.MuxerBinary, log.WithComponent("postprocess"))
	post := postprocess.NewStage(cfg.Mode, muxer, scratchDir).WithSourceLanguage(cfg.Transcription.SourceLanguage)

	var dispatcher *captions.Dispatcher
	if config.BoolOr(cfg.Captions.Enabled, false) {
		host, streamName, err := captions.ParsePublishURL(cfg.Captions.PublishURL)
		if err != nil {
			return nil, fatalf("lifecycle: parse caption publish URL: %w", err)
		}
		dispatcher = captions.New(captions.Config{
			Host:          host,
			Port:          cfg.Captions.HTTPPort,
			BasicAuthUser: cfg.Captions.BasicAuthUser,
			BasicAuthPass: cfg.Captions.BasicAuthPass,
			StreamName:    streamName,
		}, log.WithComponent("captions"))
	}

	coordCfg := coordinator.Config{
		BothTracks:            config.BoolOr(cfg.Transcription.BothTracks, false),
		SourceLanguage:        cfg.Transcription.SourceLanguage,
		Mode:                  transcribe.Mode(cfg.Transcription.Mode),
		BeamSize:              cfg.Transcription.BeamSize,
		VADFilter:             config.BoolOr(cfg.Transcription.VADFilter, false),
		InitialPrompt:         initialPrompt,
		FilterWords:           filterWords,
		MaxConcurrentSegments: cfg.MaxConcurrentSegments,
	}
	coord := coordinator.New(coordCfg, f, dl, stage, post, dispatcher, manifests, artifacts)

	logger := log.WithComponent("lifecycle")
	bandwidth, err := fetchInitialBandwidth(ctx, f)
	if err != nil {
		logger.Warn().Err(err).Str("event", "lifecycle.initial_fetch_failed").Msg("initial upstream fetch failed, publishing master with no known bandwidth")
	}
	coord.PublishMaster(bandwidth)

	httpSrv := httpserver.New(manifests, artifacts, httpserver.Config{Addr: cfg.ListenAddr})

	return &App{
		cfg:        cfg,
		manifests:  manifests,
		artifacts:  artifacts,
		httpServer: httpSrv,
		coord:      coord,
		tracer:     tracer,
		scratchDir: scratchDir,
		ownsDir:    true,
	}, nil
}

// fetchInitialBandwidth runs one follower poll purely to resolve the
// master/media distinction and capture the selected variant's bandwidth
// before the HTTP server starts serving a master playlist.
func fetchInitialBandwidth(ctx context.Context, f *follower.Follower) (int, error) {
	res, err := f.Poll(ctx)
	if err != nil {
		return 0, err
	}
	return res.Bandwidth, nil
}

// Run binds the HTTP server and runs the coordinator loop until ctx is
// cancelled, then drains on shutdown: stop the coordinator, wait for the
// HTTP server to finish in-flight requests, and release scratch files.
func (a *App) Run(ctx context.Context) error {
	logger := log.WithComponent("lifecycle")

	serveErr := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil {
			serveErr <- err
		}
	}()

	coordDone := make(chan error, 1)
	go func() {
		coordDone <- a.coord.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Str("event", "lifecycle.shutdown").Msg("shutdown signal received, draining")
	case err := <-serveErr:
		logger.Error().Err(err).Str("event", "lifecycle.http_failed").Msg("http server failed")
		_ = a.Shutdown() // Shutdown logs its own failures
		return fatalf("lifecycle: http server: %w", err)
	case err := <-coordDone:
		logger.Error().Err(err).Str("event", "lifecycle.coordinator_failed").Msg("coordinator loop exited unexpectedly")
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server (with a bounded grace period) and removes
// the scratch directory so no segment artifacts outlive the process.
func (a *App) Shutdown() error {
	logger := log.WithComponent("lifecycle")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Str("event", "lifecycle.http_shutdown_failed").Msg("http server did not shut down cleanly")
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str("event", "lifecycle.tracer_shutdown_failed").Msg("tracer provider did not shut down cleanly")
		}
	}

	if a.ownsDir {
		if err := os.RemoveAll(a.scratchDir); err != nil {
			logger.Warn().Err(err).Str("event", "lifecycle.scratch_cleanup_failed").Msg("failed to remove scratch directory")
			return fmt.Errorf("lifecycle: remove scratch directory: %w", err)
		}
	}
	return nil
}

// checkBinaryPresent verifies an external binary is resolvable on PATH
// before anything else starts, so a missing ffmpeg/ffprobe install fails
// fast with a clear message instead of surfacing as a cryptic exec error
// deep in the first pipeline cycle.
func checkBinaryPresent(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fatalf("lifecycle: required binary %q not found on PATH: %w", name, err)
	}
	return nil
}
