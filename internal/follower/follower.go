// Package follower polls the upstream HLS source, trims it to the sliding
// window, and reports the current segment set. It keeps no record of
// earlier polls; the coordinator diffs the set against the artifact store.
package follower

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hlscap/retranscoder/internal/hlsplaylist"
	"github.com/hlscap/retranscoder/internal/platform/httpx"
)

// Config controls the follower's upstream fetch and window-trim behavior.
type Config struct {
	UpstreamURL         string
	UserAgent           string
	TargetBufferSecs    float64
	MaxTargetBufferSecs float64
	FetchTimeout        time.Duration
}

// Follower tracks a sliding window of segments in a live HLS source.
type Follower struct {
	cfg       Config
	client    *http.Client
	mediaURL  string // resolved once, either cfg.UpstreamURL or the selected variant
	bandwidth int    // bandwidth of the selected variant, 0 if none was selected
}

// New returns a Follower; the upstream master/media distinction is resolved
// lazily on the first Poll call.
func New(cfg Config) *Follower {
	if cfg.TargetBufferSecs <= 0 {
		cfg.TargetBufferSecs = hlsplaylist.DefaultTargetBufferSecs
	}
	if cfg.MaxTargetBufferSecs <= 0 {
		cfg.MaxTargetBufferSecs = hlsplaylist.DefaultMaxTargetBufferSecs
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Follower{
		cfg:    cfg,
		client: httpx.NewClient(timeout),
	}
}

// Result is one poll cycle's output: the trimmed media playlist and the set
// of stable segment URIs it contains.
type Result struct {
	Playlist    *hlsplaylist.MediaPlaylist
	SegmentSet  map[string]bool
	SegmentURLs map[string]string // stable URI -> absolute fetch URL
	SleepFor    time.Duration
	Bandwidth   int // the selected variant's bandwidth, 0 if upstream has no master playlist
}

// resolveMediaURL fetches the upstream URL once and, if it is a master
// playlist, selects the highest-bandwidth variant: the upstream URL may
// point at either a master or a media playlist directly, so the
// distinction is detected rather than assumed from configuration.
func (f *Follower) resolveMediaURL(ctx context.Context) (string, error) {
	if f.mediaURL != "" {
		return f.mediaURL, nil
	}

	data, err := f.fetch(ctx, f.cfg.UpstreamURL)
	if err != nil {
		return "", fmt.Errorf("follower: fetch upstream master: %w", err)
	}

	if !hlsplaylist.IsMasterPlaylist(data) {
		f.mediaURL = f.cfg.UpstreamURL
		return f.mediaURL, nil
	}

	master, err := hlsplaylist.ParseMaster(data)
	if err != nil {
		return "", fmt.Errorf("follower: parse upstream master: %w", err)
	}
	variant, ok := hlsplaylist.SelectVariant(master)
	if !ok {
		// A master playlist with no variants is treated as a media playlist
		// at the same URL (defensive fallback; upstream is nonconformant).
		f.mediaURL = f.cfg.UpstreamURL
		return f.mediaURL, nil
	}
	f.bandwidth = variant.Bandwidth
	f.mediaURL = resolveRelative(f.cfg.UpstreamURL, variant.URI)
	return f.mediaURL, nil
}

// Poll resolves the media URL (first call only), fetches it, trims it to
// the sliding window, and computes the current segment set. Fetch failures
// are returned to the caller, which is expected to log and retry next tick
// without tearing down the pipeline.
func (f *Follower) Poll(ctx context.Context) (Result, error) {
	mediaURL, err := f.resolveMediaURL(ctx)
	if err != nil {
		return Result{}, err
	}

	data, err := f.fetch(ctx, mediaURL)
	if err != nil {
		return Result{}, fmt.Errorf("follower: fetch media playlist: %w", err)
	}

	mp, err := hlsplaylist.ParseMedia(data)
	if err != nil {
		return Result{}, fmt.Errorf("follower: parse media playlist: %w", err)
	}

	trimmed := hlsplaylist.Trim(mp, f.cfg.TargetBufferSecs, f.cfg.MaxTargetBufferSecs)

	segmentSet := make(map[string]bool, len(trimmed.Segments))
	segmentURLs := make(map[string]string, len(trimmed.Segments))
	for _, seg := range trimmed.Segments {
		stable := hlsplaylist.StableURI(seg.URI)
		segmentSet[stable] = true
		segmentURLs[stable] = resolveRelative(mediaURL, seg.URI)
	}

	sleep := time.Duration(trimmed.TargetDuration * float64(time.Second))
	if sleep <= 0 {
		sleep = time.Duration(hlsplaylist.DefaultTargetDuration) * time.Second
	}

	return Result{
		Playlist:    trimmed,
		SegmentSet:  segmentSet,
		SegmentURLs: segmentURLs,
		SleepFor:    sleep,
		Bandwidth:   f.bandwidth,
	}, nil
}

func (f *Follower) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// resolveRelative resolves ref against base as HLS playlists do: ref is
// typically a relative path, but an absolute URL in ref is honored as-is.
func resolveRelative(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
