// Package artifactstore maps a segment's stable URI to its transport-stream
// file on disk and zero-to-two WebVTT blobs in memory.
//
// drop_ts must not unlink a file that an HTTP handler is currently streaming
// to a client. This implementation uses a reference count per entry
// (incremented by GetTS, decremented by the release func GetTS returns): an
// entry marked for
// deletion is unlinked only once its reference count reaches zero
// ("tombstone-then-sweep").
package artifactstore

import (
	"os"
	"sync"
)

type tsEntry struct {
	mu        sync.Mutex
	path      string
	refs      int
	tombstone bool
}

// Store is the Artifact Store: transport-stream files keyed by stable
// segment URI, plus WebVTT blobs keyed by sidecar URI.
type Store struct {
	mu  sync.RWMutex
	ts  map[string]*tsEntry
	vtt map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		ts:  make(map[string]*tsEntry),
		vtt: make(map[string][]byte),
	}
}

// HasTS reports whether a transport-stream artifact is registered for uri.
func (s *Store) HasTS(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ts[uri]
	return ok && !e.tombstone
}

// PutTS registers path as the transport-stream artifact for uri. If an
// artifact is already registered for uri, it is replaced (the old file is
// tombstoned using the same deferred-unlink mechanism as DropTS).
func (s *Store) PutTS(uri, path string) {
	s.mu.Lock()
	old, hadOld := s.ts[uri]
	s.ts[uri] = &tsEntry{path: path}
	s.mu.Unlock()

	if hadOld {
		s.tombstone(old)
	}
}

// GetTS returns the on-disk path for uri and takes a reference on it that
// must be released via the returned release func once the caller (typically an HTTP
// response writer) has finished reading the file. Returns ("", nil, false)
// if no artifact is registered.
func (s *Store) GetTS(uri string) (path string, release func(), ok bool) {
	s.mu.RLock()
	e, found := s.ts[uri]
	s.mu.RUnlock()
	if !found {
		return "", nil, false
	}

	e.mu.Lock()
	if e.tombstone {
		e.mu.Unlock()
		return "", nil, false
	}
	e.refs++
	p := e.path
	e.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			e.mu.Lock()
			e.refs--
			shouldUnlink := e.tombstone && e.refs <= 0
			e.mu.Unlock()
			if shouldUnlink {
				_ = os.Remove(p)
			}
		})
	}
	return p, release, true
}

// DropTS marks the artifact for uri as tombstoned and removes it from the
// store's key space immediately (so HasTS/GetTS no longer find it), but
// defers the on-disk unlink until any in-flight reader releases it.
func (s *Store) DropTS(uri string) {
	s.mu.Lock()
	e, ok := s.ts[uri]
	if ok {
		delete(s.ts, uri)
	}
	s.mu.Unlock()
	if ok {
		s.tombstone(e)
	}
}

func (s *Store) tombstone(e *tsEntry) {
	e.mu.Lock()
	e.tombstone = true
	shouldUnlink := e.refs <= 0
	path := e.path
	e.mu.Unlock()
	if shouldUnlink {
		_ = os.Remove(path)
	}
}

// PutVTT stores a WebVTT blob under sidecarURI, replacing any prior value.
func (s *Store) PutVTT(sidecarURI string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vtt[sidecarURI] = data
}

// GetVTT returns the WebVTT blob for sidecarURI, or (nil, false) if absent.
func (s *Store) GetVTT(sidecarURI string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.vtt[sidecarURI]
	return data, ok
}

// DropVTT removes the WebVTT blob for sidecarURI, if present.
func (s *Store) DropVTT(sidecarURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vtt, sidecarURI)
}

// Keys returns the set of stable segment URIs currently holding a
// transport-stream artifact (tombstoned entries excluded). Used by the
// coordinator to diff against the follower's current segment set.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ts))
	for k, e := range s.ts {
		if !e.tombstone {
			out = append(out, k)
		}
	}
	return out
}
