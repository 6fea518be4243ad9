// Package httpserver exposes the Manifest Store and Artifact Store over
// HTTP as a read-only, rate-limited multiplexer.
package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/unicode/norm"

	"github.com/hlscap/retranscoder/internal/artifactstore"
	"github.com/hlscap/retranscoder/internal/fsutil"
	"github.com/hlscap/retranscoder/internal/log"
	"github.com/hlscap/retranscoder/internal/manifeststore"
)

// Server is the read-only HTTP surface for component C.
type Server struct {
	manifests *manifeststore.Store
	artifacts *artifactstore.Store
	router    chi.Router
	http      *http.Server
}

// Config controls rate limiting and bind address for the server.
type Config struct {
	Addr            string
	RateLimit       int           // requests per window, per remote addr; 0 disables
	RateLimitWindow time.Duration // defaults to 1s
}

// New builds a Server wired to the given stores.
func New(manifests *manifeststore.Store, artifacts *artifactstore.Store, cfg Config) *Server {
	s := &Server{manifests: manifests, artifacts: artifacts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "retranscoder.http")
	})
	r.Use(log.Middleware())
	if cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		r.Use(httprate.LimitByIP(cfg.RateLimit, window))
	}

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/playlist.m3u8", s.handleSlot(manifeststore.SlotMaster, "application/vnd.apple.mpegurl"))
	r.Head("/playlist.m3u8", s.handleSlot(manifeststore.SlotMaster, "application/vnd.apple.mpegurl"))
	r.Get("/chunklist.m3u8", s.handleSlot(manifeststore.SlotMedia, "application/vnd.apple.mpegurl"))
	r.Head("/chunklist.m3u8", s.handleSlot(manifeststore.SlotMedia, "application/vnd.apple.mpegurl"))
	r.Get("/subs.m3u8", s.handleSubs())
	r.Head("/subs.m3u8", s.handleSubs())
	r.Get("/subs.trans.m3u8", s.handleTaggedSubs("trans"))
	r.Head("/subs.trans.m3u8", s.handleTaggedSubs("trans"))
	r.Get("/subs.orig.m3u8", s.handleTaggedSubs("orig"))
	r.Head("/subs.orig.m3u8", s.handleTaggedSubs("orig"))
	r.Get("/subs_{lang}.m3u8", s.handleSubsByLanguage())
	r.Head("/subs_{lang}.m3u8", s.handleSubsByLanguage())
	r.Get("/*", s.handleArtifact())
	r.Head("/*", s.handleArtifact())

	s.router = r
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the chi router for testing without a bound listener.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe starts the HTTP server; it blocks until Shutdown is called
// or the listener fails.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleSlot(slot manifeststore.Slot, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := s.manifests.Get(slot)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeBlob(w, r, contentType, data)
	}
}

// handleSubs serves the single-track subtitle slot, whatever language that
// track carries.
func (s *Server) handleSubs() http.HandlerFunc {
	return s.handleSlot(manifeststore.SubsSlot("single"), "application/vnd.apple.mpegurl")
}

func (s *Server) handleTaggedSubs(tag string) http.HandlerFunc {
	return s.handleSlot(manifeststore.SubsSlot(tag), "application/vnd.apple.mpegurl")
}

// handleSubsByLanguage routes /subs_en.m3u8 to the translated-subs slot
// and any other /subs_<lang>.m3u8 to the original-subs slot, falling back
// to the single-track slot when the tagged slot is unpublished.
func (s *Server) handleSubsByLanguage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := chi.URLParam(r, "lang")
		slot := manifeststore.SubsSlot("orig")
		if lang == "en" {
			slot = manifeststore.SubsSlot("trans")
		}
		data, ok := s.manifests.Get(slot)
		if !ok {
			data, ok = s.manifests.Get(manifeststore.SubsSlot("single"))
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeBlob(w, r, "application/vnd.apple.mpegurl", data)
	}
}

// handleArtifact serves either a .ts segment or a .vtt sidecar by stable
// URI, looked up directly in the Artifact Store (no filesystem directory
// listing is ever exposed).
func (s *Server) handleArtifact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Path
		if looksLikeTraversal(uri) {
			http.NotFound(w, r)
			return
		}
		switch {
		case strings.HasSuffix(uri, ".ts"):
			s.serveTS(w, r, uri)
		case strings.HasSuffix(uri, ".vtt"):
			s.serveVTT(w, r, uri)
		default:
			http.NotFound(w, r)
		}
	}
}

// looksLikeTraversal rejects request paths that decode or normalize to
// something containing "..", since artifact lookups use the raw path as a
// stable-URI map key rather than joining it onto a filesystem root: a
// Unicode-normalization or percent-decoding trick that survives comparison
// here could still collide with a legitimate stored key.
func looksLikeTraversal(p string) bool {
	decoded := p
	for range 3 {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}
	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..") || strings.ContainsRune(normalized, 0)
}

func (s *Server) serveTS(w http.ResponseWriter, r *http.Request, uri string) {
	path, release, ok := s.artifacts.GetTS(uri)
	if !ok {
		http.NotFound(w, r)
		return
	}
	defer release()

	if err := fsutil.IsRegularFile(path); err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.ServeContent(w, r, "", info.ModTime(), f)
}

func (s *Server) serveVTT(w http.ResponseWriter, r *http.Request, uri string) {
	data, ok := s.artifacts.GetVTT(uri)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeBlob(w, r, "text/vtt; charset=utf-8", data)
}

func writeBlob(w http.ResponseWriter, r *http.Request, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	_, _ = w.Write(data)
}
