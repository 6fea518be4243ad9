// Package captions implements the optional caption dispatcher: best-effort
// HTTP POSTs of each cue to an external captioning endpoint, decoupled from
// the post-processing stage.
package captions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hlscap/retranscoder/internal/metrics"
	"github.com/hlscap/retranscoder/internal/platform/httpx"
	"github.com/hlscap/retranscoder/internal/transcribe"
	"github.com/rs/zerolog"
)

// Config configures the dispatcher's target endpoint.
type Config struct {
	Host         string // from the captioning endpoint's host[:port]
	Port         int
	BasicAuthUser string
	BasicAuthPass string
	StreamName   string // derived from the publishing URL's final path component
	Timeout      time.Duration
}

// caption is the JSON body POSTed to the external captioning endpoint.
type caption struct {
	Text       string `json:"text"`
	Lang       string `json:"lang"`
	TrackID    int    `json:"trackid"`
	StreamName string `json:"streamname"`
}

// Dispatcher posts cues to the external captioning endpoint at
// http://<host>:<port>/livevtt/captions.
type Dispatcher struct {
	cfg    Config
	url    string
	client *http.Client
	logger zerolog.Logger
}

// New returns a Dispatcher bound to cfg.
func New(cfg Config, logger zerolog.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := cfg.Host
	if cfg.Port != 0 {
		host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	return &Dispatcher{
		cfg:    cfg,
		url:    fmt.Sprintf("http://%s/livevtt/captions", host),
		client: httpx.NewClient(timeout),
		logger: logger,
	}
}

// Dispatch posts each cue in cues for the given track (trackID 0 for the
// source-language track, 1 for the translated track) and language tag.
// Failures are logged per cue and do not return an error: dispatch is
// decoupled from the rest of the pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, cues []transcribe.Cue, lang string, trackID int) {
	for _, c := range cues {
		d.dispatchOne(ctx, c, lang, trackID)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, cue transcribe.Cue, lang string, trackID int) {
	body, err := json.Marshal(caption{
		Text:       cue.Text,
		Lang:       lang,
		TrackID:    trackID,
		StreamName: d.cfg.StreamName,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("event", "captions.marshal_failed").Msg("failed to marshal caption body")
		metrics.CaptionDispatchTotal.WithLabelValues("marshal_error").Inc()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error().Err(err).Str("event", "captions.request_build_failed").Msg("failed to build caption request")
		metrics.CaptionDispatchTotal.WithLabelValues("build_error").Inc()
		return
	}
	correlationID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)
	if d.cfg.BasicAuthUser != "" {
		req.SetBasicAuth(d.cfg.BasicAuthUser, d.cfg.BasicAuthPass)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn().Err(err).Str("event", "captions.dispatch_failed").Str("correlation_id", correlationID).Str("lang", lang).Msg("caption dispatch failed")
		metrics.CaptionDispatchTotal.WithLabelValues("transport_error").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.CaptionDispatchTotal.WithLabelValues("ok").Inc()
		return
	}
	d.logger.Warn().
		Int("status", resp.StatusCode).
		Str("event", "captions.dispatch_rejected").
		Str("correlation_id", correlationID).
		Str("lang", lang).
		Msg("caption dispatch rejected by endpoint")
	metrics.CaptionDispatchTotal.WithLabelValues("rejected").Inc()
}

// ParsePublishURL extracts the captioning endpoint's hostname and the
// streamname from an rtmp://host[:port]/app/stream publishing URL: the
// streamname is the final path component, and any RTMP port is stripped
// from the host since the captioning endpoint's HTTP port is configured
// separately.
func ParsePublishURL(publishURL string) (host string, streamName string, err error) {
	trimmed := strings.TrimPrefix(publishURL, "rtmp://")
	if trimmed == publishURL {
		return "", "", fmt.Errorf("captions: %q is not an rtmp:// URL", publishURL)
	}

	slash := strings.Index(trimmed, "/")
	if slash < 0 {
		return "", "", fmt.Errorf("captions: %q has no app/stream path", publishURL)
	}
	host, _, _ = strings.Cut(trimmed[:slash], ":")
	if host == "" {
		return "", "", fmt.Errorf("captions: %q has an empty host", publishURL)
	}
	path := trimmed[slash+1:]
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "", "", fmt.Errorf("captions: %q has an empty app/stream path", publishURL)
	}

	segments := strings.Split(path, "/")
	streamName = segments[len(segments)-1]
	if streamName == "" {
		return "", "", fmt.Errorf("captions: %q has an empty stream name", publishURL)
	}
	return host, streamName, nil
}
