// Package main is the retranscoder daemon entrypoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hlscap/retranscoder/internal/config"
	"github.com/hlscap/retranscoder/internal/lifecycle"
	xglog "github.com/hlscap/retranscoder/internal/log"
	"github.com/hlscap/retranscoder/internal/transcribe"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenAddr := flag.String("listen-addr", "", "bind address, overrides config")
	publicAddress := flag.String("public-address", "", "externally reachable host[:port] for startup logs, overrides config")
	flag.Parse()

	if *showVersion {
		fmt.Printf("retranscoder %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "retranscoder", Version: version})
	logger := xglog.WithComponent("main")

	if *configPath == "" {
		logger.Fatal().Str("event", "config.missing_path").Msg("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Str("path", *configPath).Msg("failed to load configuration")
	}

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *publicAddress != "" {
		cfg.PublicAddress = *publicAddress
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "retranscoder", Version: version})
	logger = xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	device := "cpu"
	if config.BoolOr(cfg.Transcription.UseCUDA, false) {
		device = "cuda"
	}
	collaborator := transcribe.NewHTTPCollaborator(cfg.Transcription.CollaboratorURL, 30*time.Second).WithDevice(device)

	app, err := lifecycle.New(ctx, cfg, collaborator, version)
	if err != nil {
		var fatalErr *lifecycle.FatalError
		if errors.As(err, &fatalErr) {
			logger.Fatal().Err(fatalErr.Err).Str("event", "lifecycle.startup_failed").Msg("fatal startup failure")
		}
		logger.Fatal().Err(err).Str("event", "lifecycle.startup_failed").Msg("failed to initialize")
	}

	public := cfg.PublicAddress
	if public == "" {
		public = cfg.ListenAddr
	}
	logger.Info().
		Str("event", "startup.ready").
		Str("listen_addr", cfg.ListenAddr).
		Str("playlist_url", fmt.Sprintf("http://%s/playlist.m3u8", public)).
		Str("upstream", cfg.UpstreamURL).
		Msg("retranscoder started")

	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "run.failed").Msg("retranscoder exited with error")
	}
}
